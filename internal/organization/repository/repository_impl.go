package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, org_name, display_name, plan, max_functions, functions_created, subscription_updated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.OrgName,
		org.DisplayName,
		org.Plan,
		org.MaxFunctions,
		org.FunctionsCreated,
		org.SubscriptionUpdatedAt,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByName(ctx context.Context, orgName string) (*domain.Organization, error) {
	return r.first(ctx, "org_name = ?", orgName)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where(query, args...).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListAll(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Order("created_at asc, id asc").
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) UpdatePlan(ctx context.Context, id snowflake.ID, plan string, maxFunctions int64, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET plan = ?, max_functions = ?, subscription_updated_at = ?, updated_at = ?
		 WHERE id = ?`,
		plan,
		maxFunctions,
		at,
		at,
		id,
	).Error
}

func (r *repository) IncrementUsage(ctx context.Context, id snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET functions_created = functions_created + 1, subscription_updated_at = ?, updated_at = ?
		 WHERE id = ? AND (max_functions < 0 OR functions_created < max_functions)`,
		at,
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DecrementUsage(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET functions_created = CASE WHEN functions_created > 0 THEN functions_created - 1 ELSE 0 END,
		     subscription_updated_at = ?, updated_at = ?
		 WHERE id = ?`,
		at,
		at,
		id,
	).Error
}
