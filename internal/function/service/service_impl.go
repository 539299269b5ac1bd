package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/cache"
	"github.com/smallbiznis/moiledger/internal/clock"
	editlogdomain "github.com/smallbiznis/moiledger/internal/editlog/domain"
	"github.com/smallbiznis/moiledger/internal/function/domain"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/smallbiznis/moiledger/internal/observability/tracing"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	orgdomain "github.com/smallbiznis/moiledger/internal/organization/domain"
	payerdomain "github.com/smallbiznis/moiledger/internal/payer/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var tracer = tracing.Tracer("function.service")

type Params struct {
	fx.In

	Log      *zap.Logger
	DB       *gorm.DB
	GenID    *snowflake.Node
	Clock    clock.Clock
	Resolver *tenant.Resolver
	Repo     domain.Repository
	Payers   payerdomain.Repository
	Gate     orgdomain.SubscriptionGate
	EditLogs editlogdomain.Service
	Cache    *cache.Quiet
	Metrics  *metrics.Metrics
}

type Service struct {
	log      *zap.Logger
	db       *gorm.DB
	genID    *snowflake.Node
	clock    clock.Clock
	resolver *tenant.Resolver
	repo     domain.Repository
	payers   payerdomain.Repository
	gate     orgdomain.SubscriptionGate
	editLogs editlogdomain.Service
	cache    *cache.Quiet
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("function.service"),
		db:       p.DB,
		genID:    p.GenID,
		clock:    p.Clock,
		resolver: p.Resolver,
		repo:     p.Repo,
		payers:   p.Payers,
		gate:     p.Gate,
		editLogs: p.EditLogs,
		cache:    p.Cache,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateFunctionRequest) (fn domain.Function, err error) {
	ctx, span := tracer.Start(ctx, "function.Create")
	defer func() { tracing.EndSpan(span, err) }()

	auth, ok := orgcontext.FromContext(ctx)
	if !ok || auth.OrgName == "" || auth.OrgID == 0 {
		return domain.Function{}, domain.ErrInvalidOrganization
	}

	startDate, err := domain.ParseStartDate(req.FunctionStartDate)
	if err != nil {
		return domain.Function{}, err
	}
	functionID, err := domain.BuildFunctionID(req.FunctionName, req.FunctionOwnerName, req.FunctionHeldCity, startDate, req.FunctionStartTime)
	if err != nil {
		return domain.Function{}, err
	}
	span.SetAttributes(attribute.String("function_id", functionID))

	totalDays := req.FunctionTotalDays
	if totalDays == 0 {
		totalDays = 1
	}
	if totalDays < 0 {
		return domain.Function{}, apperr.Validation("invalid_total_days", "function_total_days must be positive")
	}

	customization := domain.DefaultBillCustomization()
	if req.BillCustomization != nil {
		if customization, err = req.BillCustomization.ApplyTo(customization); err != nil {
			return domain.Function{}, err
		}
	}
	var bill domain.BillDetails
	if req.FunctionBillDetails != nil {
		bill = *req.FunctionBillDetails
	}

	h, err := s.resolver.Open(ctx, auth.OrgName, tenant.KindFunctions)
	if err != nil {
		return domain.Function{}, err
	}

	limit, err := s.gate.CheckLimit(ctx, auth.OrgID)
	if err != nil {
		return domain.Function{}, err
	}
	if limit.LimitReached {
		return domain.Function{}, orgdomain.ErrLimitReached
	}

	existing, err := s.repo.FindByFunctionID(ctx, h.DB(ctx), functionID)
	if err != nil {
		return domain.Function{}, apperr.Internal(err, "lookup function %s", functionID)
	}
	if existing != nil {
		return domain.Function{}, domain.ErrDuplicate
	}

	now := s.clock.Now()
	fn = domain.Function{
		ID:                      s.genID.Generate(),
		FunctionID:              functionID,
		FunctionName:            strings.TrimSpace(req.FunctionName),
		FunctionOwnerName:       strings.TrimSpace(req.FunctionOwnerName),
		FunctionOwnerCity:       strings.TrimSpace(req.FunctionOwnerCity),
		FunctionOwnerOccupation: strings.TrimSpace(req.FunctionOwnerOccupation),
		FunctionHeldPlace:       strings.TrimSpace(req.FunctionHeldPlace),
		FunctionHeldCity:        strings.TrimSpace(req.FunctionHeldCity),
		FunctionStartDate:       startDate.Format(domain.ISODate),
		FunctionStartTime:       strings.TrimSpace(req.FunctionStartTime),
		FunctionEndDate:         strings.TrimSpace(req.FunctionEndDate),
		FunctionEndTime:         strings.TrimSpace(req.FunctionEndTime),
		FunctionTotalDays:       totalDays,
		FunctionBillDetails:     datatypes.NewJSONType(bill),
		BillCustomization:       datatypes.NewJSONType(customization),
		CreatedBy:               auth.Actor(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, h.With(tx), &fn); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicate
			}
			return apperr.Internal(err, "insert function %s", functionID)
		}
		return s.gate.IncrementUsage(ctx, tx, auth.OrgID)
	})
	if err != nil {
		return domain.Function{}, err
	}

	s.log.Info("function created",
		zap.String("org_name", auth.OrgName),
		zap.String("function_id", functionID),
		zap.String("created_by", fn.CreatedBy),
	)
	s.metrics.RecordLifecycle(ctx, "function", "create")
	s.cache.Invalidate(ctx, cache.FunctionKeys(auth.OrgName)...)
	return fn, nil
}

func (s *Service) Get(ctx context.Context, functionID string) (domain.Function, error) {
	h, err := s.resolver.OpenFromContext(ctx, tenant.KindFunctions)
	if err != nil {
		return domain.Function{}, err
	}
	fn, err := s.find(ctx, h.DB(ctx), functionID)
	if err != nil {
		return domain.Function{}, err
	}
	if fn.IsDeleted {
		return domain.Function{}, domain.ErrNotFound
	}
	return *fn, nil
}

func (s *Service) find(ctx context.Context, conn *gorm.DB, functionID string) (*domain.Function, error) {
	functionID = strings.TrimSpace(functionID)
	if functionID == "" {
		return nil, domain.ErrInvalidFunctionID
	}
	fn, err := s.repo.FindByFunctionID(ctx, conn, functionID)
	if err != nil {
		return nil, apperr.Internal(err, "load function %s", functionID)
	}
	if fn == nil {
		return nil, domain.ErrNotFound
	}
	return fn, nil
}

func (s *Service) List(ctx context.Context, req domain.ListFunctionRequest) (domain.ListFunctionResponse, error) {
	return s.list(ctx, req, false)
}

func (s *Service) ListDeleted(ctx context.Context, req domain.ListFunctionRequest) (domain.ListFunctionResponse, error) {
	return s.list(ctx, req, true)
}

func (s *Service) list(ctx context.Context, req domain.ListFunctionRequest, deleted bool) (domain.ListFunctionResponse, error) {
	h, err := s.resolver.OpenFromContext(ctx, tenant.KindFunctions)
	if err != nil {
		return domain.ListFunctionResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, h.DB(ctx), domain.ListFunctionFilter{
		Deleted:     deleted,
		Search:      req.Search,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}, page)
	if err != nil {
		return domain.ListFunctionResponse{}, apperr.Internal(err, "list functions")
	}

	items, info := pagination.BuildCursorPageInfo(items, page.Size(), func(fn *domain.Function) string {
		return pagination.CursorFor(fn.ID.String(), fn.CreatedAt)
	})

	resp := domain.ListFunctionResponse{PageInfo: info, Functions: make([]domain.Function, 0, len(items))}
	for _, item := range items {
		resp.Functions = append(resp.Functions, *item)
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateFunctionRequest) (fn domain.Function, err error) {
	ctx, span := tracer.Start(ctx, "function.Update")
	defer func() { tracing.EndSpan(span, err) }()

	orgName, ok := orgcontext.OrgNameFromContext(ctx)
	if !ok {
		return domain.Function{}, domain.ErrInvalidOrganization
	}
	reason := strings.TrimSpace(req.ReasonForEdit)
	if reason == "" {
		return domain.Function{}, domain.ErrMissingReason
	}

	h, err := s.resolver.Open(ctx, orgName, tenant.KindFunctions)
	if err != nil {
		return domain.Function{}, err
	}
	if _, err := s.resolver.Open(ctx, orgName, tenant.KindEditLogs); err != nil {
		return domain.Function{}, err
	}

	current, err := s.find(ctx, h.DB(ctx), req.FunctionID)
	if err != nil {
		return domain.Function{}, err
	}
	if current.IsDeleted {
		return domain.Function{}, domain.ErrNotFound
	}

	before := *current
	fn = *current
	if err := applyPatch(&fn, req.Changes); err != nil {
		return domain.Function{}, err
	}
	fn.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Save(ctx, h.With(tx), &fn); err != nil {
			return apperr.Internal(err, "update function %s", fn.FunctionID)
		}
		_, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
			TargetID:   fn.FunctionID,
			TargetType: editlogdomain.TargetFunction,
			Action:     editlogdomain.ActionUpdate,
			Before:     before,
			After:      fn,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		return domain.Function{}, err
	}

	s.metrics.RecordLifecycle(ctx, "function", "update")
	s.cache.Invalidate(ctx, append(cache.FunctionKeys(orgName), cache.EditLogKeys(orgName, fn.FunctionID)...)...)
	return fn, nil
}

// applyPatch copies the set fields of patch onto fn. function_id never changes.
func applyPatch(fn *domain.Function, patch domain.FunctionPatch) error {
	required := []struct {
		field string
		src   *string
		dst   *string
	}{
		{"function_name", patch.FunctionName, &fn.FunctionName},
		{"function_owner_name", patch.FunctionOwnerName, &fn.FunctionOwnerName},
		{"function_held_city", patch.FunctionHeldCity, &fn.FunctionHeldCity},
		{"function_start_time", patch.FunctionStartTime, &fn.FunctionStartTime},
	}
	for _, f := range required {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if v == "" {
			return apperr.Validation("missing_field", "%s cannot be empty", f.field)
		}
		*f.dst = v
	}

	optional := []struct {
		src *string
		dst *string
	}{
		{patch.FunctionOwnerCity, &fn.FunctionOwnerCity},
		{patch.FunctionOwnerOccupation, &fn.FunctionOwnerOccupation},
		{patch.FunctionHeldPlace, &fn.FunctionHeldPlace},
		{patch.FunctionEndDate, &fn.FunctionEndDate},
		{patch.FunctionEndTime, &fn.FunctionEndTime},
	}
	for _, f := range optional {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}

	if patch.FunctionStartDate != nil {
		date, err := domain.ParseStartDate(*patch.FunctionStartDate)
		if err != nil {
			return err
		}
		fn.FunctionStartDate = date.Format(domain.ISODate)
	}
	if patch.FunctionTotalDays != nil {
		if *patch.FunctionTotalDays <= 0 {
			return apperr.Validation("invalid_total_days", "function_total_days must be positive")
		}
		fn.FunctionTotalDays = *patch.FunctionTotalDays
	}
	if patch.FunctionBillDetails != nil {
		fn.FunctionBillDetails = datatypes.NewJSONType(*patch.FunctionBillDetails)
	}
	if patch.BillCustomization != nil {
		merged, err := patch.BillCustomization.ApplyTo(fn.BillCustomization.Data())
		if err != nil {
			return err
		}
		fn.BillCustomization = datatypes.NewJSONType(merged)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, req domain.LifecycleRequest) (fn domain.Function, err error) {
	ctx, span := tracer.Start(ctx, "function.Delete")
	defer func() { tracing.EndSpan(span, err) }()

	return s.transition(ctx, req, editlogdomain.ActionDelete)
}

func (s *Service) Restore(ctx context.Context, req domain.LifecycleRequest) (fn domain.Function, err error) {
	ctx, span := tracer.Start(ctx, "function.Restore")
	defer func() { tracing.EndSpan(span, err) }()

	return s.transition(ctx, req, editlogdomain.ActionRestore)
}

// transition moves a function between active and soft deleted. updated_at is
// left untouched so a restore yields the pre-delete record.
func (s *Service) transition(ctx context.Context, req domain.LifecycleRequest, action editlogdomain.Action) (domain.Function, error) {
	orgName, ok := orgcontext.OrgNameFromContext(ctx)
	if !ok {
		return domain.Function{}, domain.ErrInvalidOrganization
	}
	reason := strings.TrimSpace(req.Reason)

	h, err := s.resolver.Open(ctx, orgName, tenant.KindFunctions)
	if err != nil {
		return domain.Function{}, err
	}
	if reason != "" {
		if _, err := s.resolver.Open(ctx, orgName, tenant.KindEditLogs); err != nil {
			return domain.Function{}, err
		}
	}

	current, err := s.find(ctx, h.DB(ctx), req.FunctionID)
	if err != nil {
		return domain.Function{}, err
	}

	fn := *current
	switch action {
	case editlogdomain.ActionDelete:
		if current.IsDeleted {
			return domain.Function{}, domain.ErrAlreadyDeleted
		}
		now := s.clock.Now()
		fn.IsDeleted = true
		fn.DeletedAt = &now
	case editlogdomain.ActionRestore:
		if !current.IsDeleted {
			return domain.Function{}, domain.ErrNotDeleted
		}
		fn.IsDeleted = false
		fn.DeletedAt = nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetDeleted(ctx, h.With(tx), fn.ID, fn.DeletedAt); err != nil {
			return apperr.Internal(err, "%s function %s", action, fn.FunctionID)
		}
		if reason == "" {
			return nil
		}
		_, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
			TargetID:   fn.FunctionID,
			TargetType: editlogdomain.TargetFunction,
			Action:     action,
			Before:     *current,
			After:      fn,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		return domain.Function{}, err
	}

	s.log.Info("function "+string(action)+"d",
		zap.String("org_name", orgName),
		zap.String("function_id", fn.FunctionID),
	)
	s.metrics.RecordLifecycle(ctx, "function", string(action))
	s.cache.Invalidate(ctx, append(cache.FunctionKeys(orgName), cache.PayerKeys(orgName, fn.FunctionID)...)...)
	return fn, nil
}

// PermanentDelete purges a soft-deleted function together with its payers and
// releases one unit of the organization's function quota.
func (s *Service) PermanentDelete(ctx context.Context, req domain.LifecycleRequest) (err error) {
	ctx, span := tracer.Start(ctx, "function.PermanentDelete")
	defer func() { tracing.EndSpan(span, err) }()

	auth, ok := orgcontext.FromContext(ctx)
	if !ok || auth.OrgName == "" || auth.OrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	reason := strings.TrimSpace(req.Reason)

	h, err := s.resolver.Open(ctx, auth.OrgName, tenant.KindFunctions)
	if err != nil {
		return err
	}
	payers, err := s.resolver.Open(ctx, auth.OrgName, tenant.KindPayers)
	if err != nil {
		return err
	}
	if reason != "" {
		if _, err := s.resolver.Open(ctx, auth.OrgName, tenant.KindEditLogs); err != nil {
			return err
		}
	}

	fn, err := s.find(ctx, h.DB(ctx), req.FunctionID)
	if err != nil {
		return err
	}
	if !fn.IsDeleted {
		return domain.ErrNotDeleted
	}

	var purged int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reason != "" {
			if _, err := s.editLogs.Record(ctx, tx, editlogdomain.Entry{
				TargetID:   fn.FunctionID,
				TargetType: editlogdomain.TargetFunction,
				Action:     editlogdomain.ActionPermanentDelete,
				Before:     *fn,
				Reason:     reason,
			}); err != nil {
				return err
			}
		}

		var err error
		if purged, err = s.payers.DeleteByFunction(ctx, payers.With(tx), fn.FunctionID); err != nil {
			return apperr.Internal(err, "purge payers of %s", fn.FunctionID)
		}
		if err := s.repo.Delete(ctx, h.With(tx), fn.ID); err != nil {
			return apperr.Internal(err, "purge function %s", fn.FunctionID)
		}
		return s.gate.DecrementUsage(ctx, tx, auth.OrgID)
	})
	if err != nil {
		return err
	}

	s.log.Info("function purged",
		zap.String("org_name", auth.OrgName),
		zap.String("function_id", fn.FunctionID),
		zap.Int64("payers_purged", purged),
	)
	s.metrics.RecordLifecycle(ctx, "function", string(editlogdomain.ActionPermanentDelete))
	s.cache.Invalidate(ctx, append(cache.FunctionKeys(auth.OrgName), cache.PayerKeys(auth.OrgName, fn.FunctionID)...)...)
	return nil
}
