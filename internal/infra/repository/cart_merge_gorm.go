package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type CartMergeGormRepository struct {
	db *gorm.DB
}

func NewCartMergeGormRepository(db *gorm.DB) *CartMergeGormRepository {
	return &CartMergeGormRepository{db: db}
}

func (r *CartMergeGormRepository) Exists(ctx context.Context, accountID int64, snapshotHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CartMerge{}).
		Where("account_id = ? AND snapshot_hash = ?", accountID, snapshotHash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CartMergeGormRepository) Create(ctx context.Context, merge model.CartMerge) error {
	return r.db.WithContext(ctx).Create(&merge).Error
}
