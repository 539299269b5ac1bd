package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/moiledger/internal/payer/domain"
	"gorm.io/gorm"
)

type profileRepo struct{}

func ProvideProfiles() domain.ProfileRepository {
	return &profileRepo{}
}

func (r *profileRepo) FindByIdentity(ctx context.Context, db *gorm.DB, name, phone string) (*domain.PayerProfile, error) {
	var profile domain.PayerProfile
	err := db.WithContext(ctx).
		Where("payer_name = ? AND payer_phno = ?", name, phone).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) Insert(ctx context.Context, db *gorm.DB, profile *domain.PayerProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepo) Save(ctx context.Context, db *gorm.DB, profile *domain.PayerProfile) error {
	return db.WithContext(ctx).
		Where("id = ?", profile.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(profile).Error
}

// Search matches name or phone prefixes, most frequent contributors first.
func (r *profileRepo) Search(ctx context.Context, db *gorm.DB, query string, limit int) ([]*domain.PayerProfile, error) {
	var items []*domain.PayerProfile
	stmt := db.WithContext(ctx)
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		stmt = stmt.Where("(LOWER(payer_name) LIKE ? OR payer_phno LIKE ?)", q+"%", q+"%")
	}
	err := stmt.
		Order("contribution_count desc, updated_at desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
