package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindByName(ctx context.Context, orgName string) (*Organization, error)
	ListAll(ctx context.Context) ([]Organization, error)
	UpdatePlan(ctx context.Context, id snowflake.ID, plan string, maxFunctions int64, at time.Time) error
	// IncrementUsage bumps functions_created only while below the limit and
	// reports whether a row was updated.
	IncrementUsage(ctx context.Context, id snowflake.ID, at time.Time) (bool, error)
	DecrementUsage(ctx context.Context, id snowflake.ID, at time.Time) error
}
