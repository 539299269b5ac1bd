package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/cache"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/denomination"
	editlogdomain "github.com/smallbiznis/moiledger/internal/editlog/domain"
	functiondomain "github.com/smallbiznis/moiledger/internal/function/domain"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/smallbiznis/moiledger/internal/observability/tracing"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	"github.com/smallbiznis/moiledger/internal/payer/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = tracing.Tracer("payer.service")

type Params struct {
	fx.In

	Log       *zap.Logger
	DB        *gorm.DB
	GenID     *snowflake.Node
	Clock     clock.Clock
	Resolver  *tenant.Resolver
	Repo      domain.Repository
	Profiles  domain.ProfileRepository
	Functions functiondomain.Repository
	EditLogs  editlogdomain.Service
	Cache     *cache.Quiet
	Metrics   *metrics.Metrics
}

type Service struct {
	log       *zap.Logger
	db        *gorm.DB
	genID     *snowflake.Node
	clock     clock.Clock
	resolver  *tenant.Resolver
	repo      domain.Repository
	profiles  domain.ProfileRepository
	functions functiondomain.Repository
	editLogs  editlogdomain.Service
	cache     *cache.Quiet
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("payer.service"),
		db:        p.DB,
		genID:     p.GenID,
		clock:     p.Clock,
		resolver:  p.Resolver,
		repo:      p.Repo,
		profiles:  p.Profiles,
		functions: p.Functions,
		editLogs:  p.EditLogs,
		cache:     p.Cache,
		metrics:   p.Metrics,
	}
}

// handles are the tenant tables a payer operation touches. They are opened
// before any transaction starts.
type handles struct {
	orgName   string
	functions *tenant.Handle
	payers    *tenant.Handle
	editLogs  *tenant.Handle
}

func (s *Service) open(ctx context.Context, withEditLogs bool) (handles, error) {
	orgName, ok := orgcontext.OrgNameFromContext(ctx)
	if !ok {
		return handles{}, domain.ErrInvalidOrganization
	}
	h := handles{orgName: orgName}

	var err error
	if h.functions, err = s.resolver.Open(ctx, orgName, tenant.KindFunctions); err != nil {
		return handles{}, err
	}
	if h.payers, err = s.resolver.Open(ctx, orgName, tenant.KindPayers); err != nil {
		return handles{}, err
	}
	if withEditLogs {
		if h.editLogs, err = s.resolver.Open(ctx, orgName, tenant.KindEditLogs); err != nil {
			return handles{}, err
		}
	}
	return h, nil
}

// activeFunction loads the function payers attach to; soft-deleted functions
// are treated as missing.
func (s *Service) activeFunction(ctx context.Context, h handles, functionID string) (*functiondomain.Function, error) {
	functionID = strings.TrimSpace(functionID)
	if functionID == "" {
		return nil, domain.ErrMissingFunction
	}
	fn, err := s.functions.FindByFunctionID(ctx, h.functions.DB(ctx), functionID)
	if err != nil {
		return nil, apperr.Internal(err, "load function %s", functionID)
	}
	if fn == nil || fn.IsDeleted {
		return nil, domain.ErrFunctionNotFound
	}
	return fn, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreatePayerRequest) (payer domain.Payer, err error) {
	ctx, span := tracer.Start(ctx, "payer.Create")
	defer func() { tracing.EndSpan(span, err) }()

	auth, ok := orgcontext.FromContext(ctx)
	if !ok || auth.OrgName == "" {
		return domain.Payer{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.PayerName)
	if name == "" {
		return domain.Payer{}, domain.ErrInvalidName
	}
	givenObject, err := domain.CanonicalGivenObject(req.PayerGivenObject)
	if err != nil {
		return domain.Payer{}, err
	}

	h, err := s.open(ctx, false)
	if err != nil {
		return domain.Payer{}, err
	}
	fn, err := s.activeFunction(ctx, h, req.FunctionID)
	if err != nil {
		return domain.Payer{}, err
	}
	span.SetAttributes(attribute.String("function_id", fn.FunctionID))

	phone := strings.TrimSpace(req.PayerPhno)
	if err := s.ensurePhoneFree(ctx, h, fn.FunctionID, phone, 0); err != nil {
		return domain.Payer{}, err
	}

	now := s.clock.Now()
	payer = domain.Payer{
		ID:               s.genID.Generate(),
		FunctionID:       fn.FunctionID,
		PayerName:        name,
		PayerPhno:        phone,
		PayerWork:        strings.TrimSpace(req.PayerWork),
		PayerCity:        strings.TrimSpace(req.PayerCity),
		PayerRelation:    strings.TrimSpace(req.PayerRelation),
		PayerGivenObject: givenObject,
		PayerGiftName:    strings.TrimSpace(req.PayerGiftName),
		CreatedBy:        auth.Actor(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if payer.IsCash() {
		if payer.PayerCashMethod, err = domain.CanonicalCashMethod(req.PayerCashMethod); err != nil {
			return domain.Payer{}, err
		}
		breakdown, err := denomination.ForCreate(req.DenominationsReceived, req.DenominationsReturned, req.PayerAmount)
		if err != nil {
			s.recordMismatch(ctx, err, fn.FunctionID)
			return domain.Payer{}, err
		}
		payer.ApplyBreakdown(breakdown)
		payer.PayerGiftName = ""
	} else {
		if req.PayerAmount != nil {
			payer.PayerAmount = *req.PayerAmount
		}
		if payer.PayerAmount < 0 {
			return domain.Payer{}, apperr.Validation("invalid_amount", "payer_amount must not be negative")
		}
		payer.ClearCash()
	}

	if err := s.repo.Insert(ctx, h.payers.DB(ctx), &payer); err != nil {
		return domain.Payer{}, apperr.Internal(err, "insert payer")
	}

	s.log.Info("payer created",
		zap.String("org_name", h.orgName),
		zap.String("function_id", payer.FunctionID),
		zap.String("payer_id", payer.ID.String()),
		zap.Int64("net_amount", payer.NetAmount),
	)
	s.upsertProfile(ctx, h.orgName, payer, true)
	s.metrics.RecordLifecycle(ctx, "payer", "create")
	s.cache.Invalidate(ctx, cache.PayerKeys(h.orgName, payer.FunctionID)...)
	return payer, nil
}

func (s *Service) ensurePhoneFree(ctx context.Context, h handles, functionID, phone string, exclude snowflake.ID) error {
	if phone == "" {
		return nil
	}
	inUse, err := s.repo.PhoneInUse(ctx, h.payers.DB(ctx), functionID, phone, exclude)
	if err != nil {
		return apperr.Internal(err, "check payer phone")
	}
	if inUse {
		return domain.ErrDuplicatePhone
	}
	return nil
}

func (s *Service) recordMismatch(ctx context.Context, err error, functionID string) {
	if apperr.CodeOf(err) != "denomination_mismatch" {
		return
	}
	s.metrics.RecordDenominationMismatch(ctx)
	s.log.Warn("denomination mismatch rejected",
		zap.String("function_id", functionID),
		zap.Error(err),
	)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) find(ctx context.Context, h handles, rawID string) (*domain.Payer, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	payer, err := s.repo.FindByID(ctx, h.payers.DB(ctx), id)
	if err != nil {
		return nil, apperr.Internal(err, "load payer %s", id)
	}
	if payer == nil {
		return nil, domain.ErrNotFound
	}
	return payer, nil
}

func (s *Service) Get(ctx context.Context, payerID string) (domain.Payer, error) {
	h, err := s.open(ctx, false)
	if err != nil {
		return domain.Payer{}, err
	}
	payer, err := s.find(ctx, h, payerID)
	if err != nil {
		return domain.Payer{}, err
	}
	if payer.IsDeleted {
		return domain.Payer{}, domain.ErrNotFound
	}
	return *payer, nil
}

func (s *Service) ListByFunction(ctx context.Context, req domain.ListPayerRequest) (domain.ListPayerResponse, error) {
	if strings.TrimSpace(req.FunctionID) == "" {
		return domain.ListPayerResponse{}, domain.ErrMissingFunction
	}
	return s.list(ctx, req, false)
}

func (s *Service) ListDeleted(ctx context.Context, req domain.ListPayerRequest) (domain.ListPayerResponse, error) {
	return s.list(ctx, req, true)
}

func (s *Service) list(ctx context.Context, req domain.ListPayerRequest, deleted bool) (domain.ListPayerResponse, error) {
	h, err := s.open(ctx, false)
	if err != nil {
		return domain.ListPayerResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, h.payers.DB(ctx), domain.ListPayerFilter{
		FunctionID: strings.TrimSpace(req.FunctionID),
		Deleted:    deleted,
		Search:     req.Search,
	}, page)
	if err != nil {
		return domain.ListPayerResponse{}, apperr.Internal(err, "list payers")
	}

	items, info := pagination.BuildCursorPageInfo(items, page.Size(), func(p *domain.Payer) string {
		return pagination.CursorFor(p.ID.String(), p.CreatedAt)
	})

	resp := domain.ListPayerResponse{PageInfo: info, Payers: make([]domain.Payer, 0, len(items))}
	for _, item := range items {
		resp.Payers = append(resp.Payers, *item)
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePayerRequest) (payer domain.Payer, err error) {
	ctx, span := tracer.Start(ctx, "payer.Update")
	defer func() { tracing.EndSpan(span, err) }()

	reason := strings.TrimSpace(req.ReasonForEdit)
	if reason == "" {
		return domain.Payer{}, domain.ErrMissingReason
	}

	h, err := s.open(ctx, true)
	if err != nil {
		return domain.Payer{}, err
	}
	current, err := s.find(ctx, h, req.PayerID)
	if err != nil {
		return domain.Payer{}, err
	}
	if current.IsDeleted {
		return domain.Payer{}, domain.ErrNotFound
	}

	before := *current
	payer = *current
	patch := req.Changes
	if err := applyPatch(&payer, patch); err != nil {
		return domain.Payer{}, err
	}
	if payer.PayerPhno != current.PayerPhno {
		if err := s.ensurePhoneFree(ctx, h, payer.FunctionID, payer.PayerPhno, payer.ID); err != nil {
			return domain.Payer{}, err
		}
	}

	if payer.IsCash() {
		amount := payer.PayerAmount
		if patch.PayerAmount != nil {
			amount = *patch.PayerAmount
		}
		// denominations are recomputed on every cash edit; absent maps clear the itemization
		breakdown, err := denomination.ForUpdate(patch.DenominationsReceived, patch.DenominationsReturned, amount)
		if err != nil {
			return domain.Payer{}, err
		}
		payer.ApplyBreakdown(breakdown)
		payer.PayerGiftName = ""
	} else {
		if patch.PayerAmount != nil {
			if *patch.PayerAmount < 0 {
				return domain.Payer{}, apperr.Validation("invalid_amount", "payer_amount must not be negative")
			}
			payer.PayerAmount = *patch.PayerAmount
		}
		payer.ClearCash()
	}
	payer.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Save(ctx, h.payers.With(tx), &payer); err != nil {
			return apperr.Internal(err, "update payer %s", payer.ID)
		}
		_, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
			TargetID:   payer.ID.String(),
			TargetType: editlogdomain.TargetPayer,
			Action:     editlogdomain.ActionUpdate,
			Before:     before,
			After:      payer,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		return domain.Payer{}, err
	}

	s.upsertProfile(ctx, h.orgName, payer, false)
	s.metrics.RecordLifecycle(ctx, "payer", "update")
	s.cache.Invalidate(ctx, append(cache.PayerKeys(h.orgName, payer.FunctionID), cache.EditLogKeys(h.orgName, payer.ID.String())...)...)
	return payer, nil
}

// applyPatch copies the descriptive fields of patch onto payer. Amounts and
// denominations are settled by the caller.
func applyPatch(payer *domain.Payer, patch domain.PayerPatch) error {
	if patch.PayerName != nil {
		name := strings.TrimSpace(*patch.PayerName)
		if name == "" {
			return domain.ErrInvalidName
		}
		payer.PayerName = name
	}

	fields := []struct {
		src *string
		dst *string
	}{
		{patch.PayerPhno, &payer.PayerPhno},
		{patch.PayerWork, &payer.PayerWork},
		{patch.PayerCity, &payer.PayerCity},
		{patch.PayerRelation, &payer.PayerRelation},
		{patch.PayerGiftName, &payer.PayerGiftName},
	}
	for _, f := range fields {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}

	if patch.PayerGivenObject != nil {
		givenObject, err := domain.CanonicalGivenObject(*patch.PayerGivenObject)
		if err != nil {
			return err
		}
		payer.PayerGivenObject = givenObject
	}
	if patch.PayerCashMethod != nil {
		method, err := domain.CanonicalCashMethod(*patch.PayerCashMethod)
		if err != nil {
			return err
		}
		payer.PayerCashMethod = method
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, req domain.LifecycleRequest) (payer domain.Payer, err error) {
	ctx, span := tracer.Start(ctx, "payer.Delete")
	defer func() { tracing.EndSpan(span, err) }()

	return s.transition(ctx, req, editlogdomain.ActionDelete)
}

func (s *Service) Restore(ctx context.Context, req domain.LifecycleRequest) (payer domain.Payer, err error) {
	ctx, span := tracer.Start(ctx, "payer.Restore")
	defer func() { tracing.EndSpan(span, err) }()

	return s.transition(ctx, req, editlogdomain.ActionRestore)
}

// transition moves a payer between active and soft deleted without touching
// updated_at. A restore re-checks the function and phone constraints.
func (s *Service) transition(ctx context.Context, req domain.LifecycleRequest, action editlogdomain.Action) (domain.Payer, error) {
	reason := strings.TrimSpace(req.Reason)
	h, err := s.open(ctx, reason != "")
	if err != nil {
		return domain.Payer{}, err
	}
	current, err := s.find(ctx, h, req.PayerID)
	if err != nil {
		return domain.Payer{}, err
	}

	payer := *current
	switch action {
	case editlogdomain.ActionDelete:
		if current.IsDeleted {
			return domain.Payer{}, domain.ErrAlreadyDeleted
		}
		now := s.clock.Now()
		payer.IsDeleted = true
		payer.DeletedAt = &now
	case editlogdomain.ActionRestore:
		if !current.IsDeleted {
			return domain.Payer{}, domain.ErrNotDeleted
		}
		if _, err := s.activeFunction(ctx, h, current.FunctionID); err != nil {
			return domain.Payer{}, err
		}
		if err := s.ensurePhoneFree(ctx, h, current.FunctionID, current.PayerPhno, current.ID); err != nil {
			return domain.Payer{}, err
		}
		payer.IsDeleted = false
		payer.DeletedAt = nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetDeleted(ctx, h.payers.With(tx), payer.ID, payer.DeletedAt); err != nil {
			return apperr.Internal(err, "%s payer %s", action, payer.ID)
		}
		if reason == "" {
			return nil
		}
		_, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
			TargetID:   payer.ID.String(),
			TargetType: editlogdomain.TargetPayer,
			Action:     action,
			Before:     *current,
			After:      payer,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		return domain.Payer{}, err
	}

	s.metrics.RecordLifecycle(ctx, "payer", string(action))
	s.cache.Invalidate(ctx, cache.PayerKeys(h.orgName, payer.FunctionID)...)
	return payer, nil
}

func (s *Service) PermanentDelete(ctx context.Context, req domain.LifecycleRequest) (err error) {
	ctx, span := tracer.Start(ctx, "payer.PermanentDelete")
	defer func() { tracing.EndSpan(span, err) }()

	reason := strings.TrimSpace(req.Reason)
	h, err := s.open(ctx, reason != "")
	if err != nil {
		return err
	}
	payer, err := s.find(ctx, h, req.PayerID)
	if err != nil {
		return err
	}
	if !payer.IsDeleted {
		return domain.ErrNotDeleted
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reason != "" {
			if _, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
				TargetID:   payer.ID.String(),
				TargetType: editlogdomain.TargetPayer,
				Action:     editlogdomain.ActionPermanentDelete,
				Before:     *payer,
				Reason:     reason,
			}); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, h.payers.With(tx), payer.ID); err != nil {
			return apperr.Internal(err, "purge payer %s", payer.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("payer purged",
		zap.String("org_name", h.orgName),
		zap.String("function_id", payer.FunctionID),
		zap.String("payer_id", payer.ID.String()),
	)
	s.metrics.RecordLifecycle(ctx, "payer", string(editlogdomain.ActionPermanentDelete))
	s.cache.Invalidate(ctx, cache.PayerKeys(h.orgName, payer.FunctionID)...)
	return nil
}
