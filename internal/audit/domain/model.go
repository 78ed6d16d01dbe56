// Package domain contains the append-only payment audit ledger model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/karoonet/billing/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit event types. Every webhook delivery produces at least one entry,
// valid or not; reconciliation outcomes produce a second.
const (
	EventWebhookReceived  = "webhook_received"
	EventPaymentVerified  = "payment_verified"
	EventPaymentApplied   = "payment_applied"
	EventPaymentRejected  = "payment_rejected"
	EventPaymentDuplicate = "payment_duplicate"
	EventManualPayment    = "manual_payment"
)

// Entry is one immutable row in the payment audit ledger. Entries are never
// updated or deleted; retention is handled by an external time-boxed cleanup
// job outside this service.
type Entry struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	InvoiceID      *snowflake.ID     `json:"invoice_id" gorm:"index"` // nil for unmatched events
	EventType      string            `json:"event_type" gorm:"type:text;not null;index"`
	SignatureValid bool              `json:"signature_valid" gorm:"not null"`
	RawPayload     datatypes.JSON    `json:"raw_payload" gorm:"type:jsonb"`
	Metadata       datatypes.JSONMap `json:"metadata" gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;index"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "payment_audit_logs" }

type ListByInvoiceRequest struct {
	pagination.Pagination
	InvoiceID snowflake.ID
}

type ListByInvoiceResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type ListFilter struct {
	InvoiceID snowflake.ID
	Cursor    *Cursor
	Limit     int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// Service appends and reads audit entries. Append is the only write
// operation; no update or delete exists anywhere in the ledger.
type Service interface {
	Append(ctx context.Context, entry *Entry) error
	ListByInvoice(ctx context.Context, req ListByInvoiceRequest) (ListByInvoiceResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
}

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidInvoice   = errors.New("invalid_invoice")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
