package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/editlog/domain"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Resolver *tenant.Resolver
	Repo     domain.Repository
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	resolver *tenant.Resolver
	repo     domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("editlog.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		resolver: p.Resolver,
		repo:     p.Repo,
	}
}

// Record requires the tenant's edit_logs table to be opened before tx began
// when the pool holds a single connection.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry domain.Entry) (domain.EditLog, error) {
	auth, ok := orgcontext.FromContext(ctx)
	if !ok || auth.OrgName == "" {
		return domain.EditLog{}, domain.ErrInvalidOrganization
	}

	reason := strings.TrimSpace(entry.Reason)
	if reason == "" {
		return domain.EditLog{}, domain.ErrMissingReason
	}
	if strings.TrimSpace(entry.TargetID) == "" || !entry.TargetType.Valid() {
		return domain.EditLog{}, domain.ErrInvalidTarget
	}
	if !entry.Action.Valid() {
		return domain.EditLog{}, domain.ErrInvalidAction
	}

	before, err := snapshot(entry.Before)
	if err != nil {
		return domain.EditLog{}, apperr.Internal(err, "snapshot before state")
	}
	after, err := snapshot(entry.After)
	if err != nil {
		return domain.EditLog{}, apperr.Internal(err, "snapshot after state")
	}

	h, err := s.resolver.Open(ctx, auth.OrgName, tenant.KindEditLogs)
	if err != nil {
		return domain.EditLog{}, err
	}

	log := domain.EditLog{
		ID:            s.genID.Generate(),
		TargetID:      entry.TargetID,
		TargetType:    entry.TargetType,
		Action:        entry.Action,
		Before:        datatypes.JSONMap(before),
		After:         datatypes.JSONMap(after),
		ChangedFields: datatypes.JSONSlice[string](domain.Diff(before, after)),
		Reason:        reason,
		CreatedBy:     auth.Actor(),
		CreatedByName: auth.DisplayName(),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, h.With(tx), &log); err != nil {
		return domain.EditLog{}, apperr.Internal(err, "record edit log")
	}
	return log, nil
}

func snapshot(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	raw, err := domain.Snapshot(v)
	if err != nil {
		return nil, err
	}
	return domain.Sanitize(raw), nil
}

func (s *Service) List(ctx context.Context, req domain.ListEditLogRequest) (domain.ListEditLogResponse, error) {
	h, err := s.resolver.OpenFromContext(ctx, tenant.KindEditLogs)
	if err != nil {
		return domain.ListEditLogResponse{}, err
	}
	if req.Action != "" && !req.Action.Valid() {
		return domain.ListEditLogResponse{}, domain.ErrInvalidAction
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, h.DB(ctx), domain.ListEditLogFilter{
		TargetID:   strings.TrimSpace(req.TargetID),
		TargetType: req.TargetType,
		Action:     req.Action,
	}, page)
	if err != nil {
		return domain.ListEditLogResponse{}, apperr.Internal(err, "list edit logs")
	}

	items, info := pagination.BuildCursorPageInfo(items, page.Size(), func(l *domain.EditLog) string {
		return pagination.CursorFor(l.ID.String(), l.CreatedAt)
	})

	resp := domain.ListEditLogResponse{PageInfo: info, EditLogs: make([]domain.EditLog, 0, len(items))}
	for _, item := range items {
		resp.EditLogs = append(resp.EditLogs, *item)
	}
	return resp, nil
}
