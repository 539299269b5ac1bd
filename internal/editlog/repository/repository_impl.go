package repository

import (
	"context"

	"github.com/smallbiznis/moiledger/internal/editlog/domain"
	"github.com/smallbiznis/moiledger/pkg/db/option"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *domain.EditLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListEditLogFilter, page pagination.Pagination) ([]*domain.EditLog, error) {
	var items []*domain.EditLog
	stmt := db.WithContext(ctx)
	if filter.TargetID != "" {
		stmt = stmt.Where("target_id = ?", filter.TargetID)
	}
	if filter.TargetType != "" {
		stmt = stmt.Where("target_type = ?", filter.TargetType)
	}
	if filter.Action != "" {
		stmt = stmt.Where("action = ?", filter.Action)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
