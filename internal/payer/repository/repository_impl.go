package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/payer/domain"
	"github.com/smallbiznis/moiledger/pkg/db/option"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payer *domain.Payer) error {
	return db.WithContext(ctx).Create(payer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payer, error) {
	var payer domain.Payer
	err := db.WithContext(ctx).Where("id = ?", id).First(&payer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payer, nil
}

func (r *repo) PhoneInUse(ctx context.Context, db *gorm.DB, functionID, phone string, exclude snowflake.ID) (bool, error) {
	var count int64
	stmt := db.WithContext(ctx).
		Where("function_id = ? AND payer_phno = ? AND is_deleted = ?", functionID, phone, false)
	if exclude != 0 {
		stmt = stmt.Where("id <> ?", exclude)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPayerFilter, page pagination.Pagination) ([]*domain.Payer, error) {
	var items []*domain.Payer
	stmt := db.WithContext(ctx).Where("is_deleted = ?", filter.Deleted)
	if filter.FunctionID != "" {
		stmt = stmt.Where("function_id = ?", filter.FunctionID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("(LOWER(payer_name) LIKE ? OR payer_phno LIKE ? OR LOWER(payer_city) LIKE ?)", like, like, like)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveByFunction(ctx context.Context, db *gorm.DB, functionID string) ([]*domain.Payer, error) {
	var items []*domain.Payer
	err := db.WithContext(ctx).
		Where("function_id = ? AND is_deleted = ?", functionID, false).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, payer *domain.Payer) error {
	return db.WithContext(ctx).
		Where("id = ?", payer.ID).
		Select("*").
		Omit("id", "function_id", "created_at").
		Updates(payer).Error
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
		Delete(&domain.Payer{}).Error
}

func (r *repo) DeleteByFunction(ctx context.Context, db *gorm.DB, functionID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("function_id = ?", functionID).
		Delete(&domain.Payer{})
	return res.RowsAffected, res.Error
}
