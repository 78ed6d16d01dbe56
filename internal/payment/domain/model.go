// Package domain contains the payment event model and the gateway status
// vocabulary shared by the webhook ingress and the reconciler.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GatewayStatus is the closed internal vocabulary gateway notifications are
// mapped onto. Anything the gateway sends outside the known set is treated
// as still processing.
type GatewayStatus string

const (
	StatusPaid       GatewayStatus = "paid"
	StatusFailed     GatewayStatus = "failed"
	StatusCancelled  GatewayStatus = "cancelled"
	StatusProcessing GatewayStatus = "processing"
)

// MapGatewayStatus translates the gateway's status vocabulary into the
// internal enum. The mapping is exhaustive by construction: unknown values
// fall through to processing rather than failing the event.
func MapGatewayStatus(raw string) GatewayStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return StatusPaid
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	default:
		return StatusProcessing
	}
}

// EventRecord is the durable copy of a webhook delivery. The unique index
// on (provider_reference, provider_transaction_id) is the idempotency
// guarantee: it lives in the store, not in process memory, because ingress
// instances scale horizontally.
type EventRecord struct {
	ID                    snowflake.ID   `json:"id" gorm:"primaryKey"`
	InvoiceID             *snowflake.ID  `json:"invoice_id" gorm:"index"`
	ProviderReference     string         `json:"provider_reference" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_tx,priority:1"`
	ProviderTransactionID string         `json:"provider_transaction_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_tx,priority:2"`
	RawStatus             string         `json:"raw_status" gorm:"type:text;not null"`
	Status                GatewayStatus  `json:"status" gorm:"type:text;not null"`
	Amount                int64          `json:"amount" gorm:"not null"` // cents
	SignatureValid        bool           `json:"signature_valid" gorm:"not null"`
	Payload               datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt            time.Time      `json:"received_at" gorm:"not null"`
	AppliedAt             *time.Time     `json:"applied_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

// PaymentEvent is the normalized webhook handed from ingress to the
// reconciler. It is transient: only the EventRecord and the audit ledger
// retain it after processing.
type PaymentEvent struct {
	ProviderReference     string
	ProviderTransactionID string
	RawStatus             string
	Status                GatewayStatus
	Amount                int64 // cents
	SignatureValid        bool
	ReceivedAt            time.Time
	RawPayload            []byte
}

// Service ingests raw gateway webhook deliveries.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte) error
}

type Repository interface {
	// InsertEvent inserts the record unless the (reference, transaction)
	// tuple already exists; reports whether a row was written.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, reference, transactionID string) (*EventRecord, error)
	MarkApplied(ctx context.Context, tx *gorm.DB, id snowflake.ID, appliedAt time.Time) error
}

var (
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
