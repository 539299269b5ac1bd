package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	"github.com/smallbiznis/moiledger/internal/payer/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"go.uber.org/zap"
)

const (
	defaultProfileLimit = 10
	maxProfileLimit     = 50
)

// upsertProfile refreshes the contributor profile keyed by (name, phone).
// Failures are logged and never surface to the payer write.
func (s *Service) upsertProfile(ctx context.Context, orgName string, payer domain.Payer, contributed bool) {
	log := s.log.With(
		zap.String("org_name", orgName),
		zap.String("payer_id", payer.ID.String()),
	)

	h, err := s.resolver.Open(ctx, orgName, tenant.KindPayerProfiles)
	if err != nil {
		log.Warn("open payer profiles", zap.Error(err))
		return
	}
	conn := h.DB(ctx)

	profile, err := s.profiles.FindByIdentity(ctx, conn, payer.PayerName, payer.PayerPhno)
	if err != nil {
		log.Warn("load payer profile", zap.Error(err))
		return
	}

	now := s.clock.Now()
	if profile == nil {
		profile = &domain.PayerProfile{
			ID:                s.genID.Generate(),
			PayerName:         payer.PayerName,
			PayerPhno:         payer.PayerPhno,
			PayerWork:         payer.PayerWork,
			PayerCity:         payer.PayerCity,
			PayerRelation:     payer.PayerRelation,
			LastFunctionID:    payer.FunctionID,
			ContributionCount: 1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.profiles.Insert(ctx, conn, profile); err != nil && !db.IsDuplicateKeyErr(err) {
			log.Warn("insert payer profile", zap.Error(err))
		}
		return
	}

	for _, f := range []struct {
		src string
		dst *string
	}{
		{payer.PayerWork, &profile.PayerWork},
		{payer.PayerCity, &profile.PayerCity},
		{payer.PayerRelation, &profile.PayerRelation},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	profile.LastFunctionID = payer.FunctionID
	if contributed {
		profile.ContributionCount++
	}
	profile.UpdatedAt = now
	if err := s.profiles.Save(ctx, conn, profile); err != nil {
		log.Warn("update payer profile", zap.Error(err))
	}
}

// SearchProfiles suggests known contributors by name or phone prefix.
func (s *Service) SearchProfiles(ctx context.Context, req domain.SearchProfilesRequest) ([]domain.PayerProfile, error) {
	orgName, ok := orgcontext.OrgNameFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	h, err := s.resolver.Open(ctx, orgName, tenant.KindPayerProfiles)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultProfileLimit
	case limit > maxProfileLimit:
		limit = maxProfileLimit
	}

	items, err := s.profiles.Search(ctx, h.DB(ctx), strings.TrimSpace(req.Query), limit)
	if err != nil {
		return nil, apperr.Internal(err, "search payer profiles")
	}
	out := make([]domain.PayerProfile, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}
