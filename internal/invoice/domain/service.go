package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// RecordManualPaymentRequest captures an admin-entered payment (EFT,
// cash deposit, card-on-file) outside the gateway webhook path.
type RecordManualPaymentRequest struct {
	InvoiceID     snowflake.ID
	Amount        int64 // cents, > 0
	PaymentMethod string
	Reference     string
	PaymentDate   time.Time
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	Create(ctx context.Context, invoice *Invoice) error
	RecordManualPayment(ctx context.Context, req RecordManualPaymentRequest) (Invoice, error)
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Invoice, error)
	// LockByID loads the invoice row FOR UPDATE inside tx.
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateSettlement(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
}

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvoiceAlreadyPaid = errors.New("invoice_already_paid")
	ErrInvoiceArchived    = errors.New("invoice_archived")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidInvoice     = errors.New("invalid_invoice")
)
