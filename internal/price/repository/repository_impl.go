package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/karoonet/billing/internal/price/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, price *domain.PriceHistory) error {
	return db.WithContext(ctx).Create(price).Error
}

func (r *repo) LockOpen(ctx context.Context, tx *gorm.DB, packageCode string) (*domain.PriceHistory, error) {
	var item domain.PriceHistory
	err := tx.WithContext(ctx).Raw(
		`SELECT id, package_code, package_name, monthly_price, currency,
			effective_from, effective_to, created_at
		 FROM price_history
		 WHERE package_code = ? AND effective_to IS NULL
		 FOR UPDATE`,
		packageCode,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CloseOpen(ctx context.Context, tx *gorm.DB, id snowflake.ID, closedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE price_history
		 SET effective_to = ?
		 WHERE id = ? AND effective_to IS NULL`,
		closedAt,
		id,
	).Error
}

func (r *repo) FindOpen(ctx context.Context, db *gorm.DB, packageCode string) (*domain.PriceHistory, error) {
	var item domain.PriceHistory
	err := db.WithContext(ctx).
		Where("package_code = ? AND effective_to IS NULL", packageCode).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindAt(ctx context.Context, db *gorm.DB, packageCode string, at time.Time) (*domain.PriceHistory, error) {
	var item domain.PriceHistory
	err := db.WithContext(ctx).
		Where("package_code = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", packageCode, at, at).
		Order("effective_from DESC").
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByCode(ctx context.Context, db *gorm.DB, packageCode string) ([]domain.PriceHistory, error) {
	var items []domain.PriceHistory
	err := db.WithContext(ctx).
		Where("package_code = ?", packageCode).
		Order("effective_from DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
