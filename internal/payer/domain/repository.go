package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository operates on a *gorm.DB already bound to the tenant's payers table.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payer *Payer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payer, error)
	// PhoneInUse reports whether an active payer of the function already uses phone.
	PhoneInUse(ctx context.Context, db *gorm.DB, functionID, phone string, exclude snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListPayerFilter, page pagination.Pagination) ([]*Payer, error)
	ListActiveByFunction(ctx context.Context, db *gorm.DB, functionID string) ([]*Payer, error)
	Save(ctx context.Context, db *gorm.DB, payer *Payer) error
	SetDeleted(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt *time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// DeleteByFunction purges every payer of the function, deleted or not.
	DeleteByFunction(ctx context.Context, db *gorm.DB, functionID string) (int64, error)
}

// ProfileRepository operates on a *gorm.DB bound to the tenant's payer_profiles table.
type ProfileRepository interface {
	FindByIdentity(ctx context.Context, db *gorm.DB, name, phone string) (*PayerProfile, error)
	Insert(ctx context.Context, db *gorm.DB, profile *PayerProfile) error
	Save(ctx context.Context, db *gorm.DB, profile *PayerProfile) error
	Search(ctx context.Context, db *gorm.DB, query string, limit int) ([]*PayerProfile, error)
}
