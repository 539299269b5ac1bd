package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/function/domain"
	"github.com/smallbiznis/moiledger/pkg/db/option"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fn *domain.Function) error {
	return db.WithContext(ctx).Create(fn).Error
}

func (r *repo) FindByFunctionID(ctx context.Context, db *gorm.DB, functionID string) (*domain.Function, error) {
	var fn domain.Function
	err := db.WithContext(ctx).
		Where("function_id = ?", functionID).
		First(&fn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFunctionFilter, page pagination.Pagination) ([]*domain.Function, error) {
	var items []*domain.Function
	stmt := db.WithContext(ctx).Where("is_deleted = ?", filter.Deleted)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("(LOWER(function_name) LIKE ? OR LOWER(function_owner_name) LIKE ? OR LOWER(function_held_city) LIKE ?)", like, like, like)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, fn *domain.Function) error {
	return db.WithContext(ctx).
		Where("id = ?", fn.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(fn).Error
}

func (r *repo) SetDeleted(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt *time.Time) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"is_deleted": deletedAt != nil,
			"deleted_at": deletedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Function{}).Error
}
