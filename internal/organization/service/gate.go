package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type gate struct {
	repo  domain.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewGate(repo domain.Repository, clk clock.Clock, log *zap.Logger) domain.SubscriptionGate {
	return &gate{
		repo:  repo,
		clock: clk,
		log:   log.Named("organization.gate"),
	}
}

func (g *gate) CheckLimit(ctx context.Context, orgID snowflake.ID) (domain.LimitStatus, error) {
	org, err := g.repo.FindByID(ctx, orgID)
	if err != nil {
		return domain.LimitStatus{}, apperr.Internal(err, "load organization %s", orgID)
	}
	if org == nil {
		return domain.LimitStatus{}, domain.ErrNotFound
	}

	return domain.LimitStatus{
		Plan:             org.Plan,
		MaxFunctions:     org.MaxFunctions,
		FunctionsCreated: org.FunctionsCreated,
		LimitReached:     !org.Unlimited() && org.FunctionsCreated >= org.MaxFunctions,
	}, nil
}

// IncrementUsage re-checks the limit atomically, so a concurrent creation
// that slipped past CheckLimit still fails here and rolls back tx.
func (g *gate) IncrementUsage(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	ok, err := g.repo.WithTx(tx).IncrementUsage(ctx, orgID, g.clock.Now())
	if err != nil {
		return apperr.Internal(err, "increment usage of %s", orgID)
	}
	if !ok {
		return domain.ErrLimitReached
	}
	return nil
}

func (g *gate) DecrementUsage(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	if err := g.repo.WithTx(tx).DecrementUsage(ctx, orgID, g.clock.Now()); err != nil {
		return apperr.Internal(err, "decrement usage of %s", orgID)
	}
	return nil
}
