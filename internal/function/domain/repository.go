package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository operates on a *gorm.DB already bound to the tenant's functions table.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fn *Function) error
	FindByFunctionID(ctx context.Context, db *gorm.DB, functionID string) (*Function, error)
	List(ctx context.Context, db *gorm.DB, filter ListFunctionFilter, page pagination.Pagination) ([]*Function, error)
	Save(ctx context.Context, db *gorm.DB, fn *Function) error
	// SetDeleted flips the soft-delete flag without touching updated_at.
	SetDeleted(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt *time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
