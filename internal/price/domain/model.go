// Package domain holds package price history. Prices are never updated in
// place: changing a price closes the current row and opens a new one, so
// historical invoices can always be re-derived.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PriceHistory is one pricing period for a package. At most one row per
// package has a NULL effective_to; that row is the current price.
type PriceHistory struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	PackageCode   string       `json:"package_code" gorm:"type:text;not null;index"`
	PackageName   string       `json:"package_name" gorm:"type:text;not null"`
	MonthlyPrice  int64        `json:"monthly_price" gorm:"not null"` // cents
	Currency      string       `json:"currency" gorm:"type:text;not null;default:'ZAR'"`
	EffectiveFrom time.Time    `json:"effective_from" gorm:"not null"`
	EffectiveTo   *time.Time   `json:"effective_to"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PriceHistory) TableName() string { return "price_history" }

type SetPriceRequest struct {
	PackageCode   string
	PackageName   string
	MonthlyPrice  int64 // cents
	Currency      string
	EffectiveFrom time.Time
}

type Service interface {
	// SetPrice closes the current price period, if any, and opens a new one.
	SetPrice(ctx context.Context, req SetPriceRequest) (*PriceHistory, error)
	// Current returns the open-ended price row for the package.
	Current(ctx context.Context, packageCode string) (*PriceHistory, error)
	// At returns the price effective at the given instant.
	At(ctx context.Context, packageCode string, at time.Time) (*PriceHistory, error)
	History(ctx context.Context, packageCode string) ([]PriceHistory, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, price *PriceHistory) error
	// LockOpen loads the open-ended row for the package FOR UPDATE.
	LockOpen(ctx context.Context, tx *gorm.DB, packageCode string) (*PriceHistory, error)
	CloseOpen(ctx context.Context, tx *gorm.DB, id snowflake.ID, closedAt time.Time) error
	FindOpen(ctx context.Context, db *gorm.DB, packageCode string) (*PriceHistory, error)
	FindAt(ctx context.Context, db *gorm.DB, packageCode string, at time.Time) (*PriceHistory, error)
	ListByCode(ctx context.Context, db *gorm.DB, packageCode string) ([]PriceHistory, error)
}

var (
	ErrInvalidPackage       = errors.New("invalid_package")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidEffectiveDate = errors.New("invalid_effective_date")
	ErrPriceNotFound        = errors.New("price_not_found")
)
