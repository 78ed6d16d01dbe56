// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents invoice lifecycle states. Transitions only move
// forward: draft -> sent -> {partial, paid} -> archived, partial -> paid.
// failed/cancelled are written by gateway notifications and never overwrite
// paid.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusArchived  Status = "archived"
)

// Invoice is the billing-bearing entity payments reconcile against.
// AmountPaid + AmountDue == TotalAmount holds at all times; AmountPaid only
// ever grows. Rows are archived by admin action, never physically deleted
// while payments reference them.
type Invoice struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceNumber     string       `json:"invoice_number" gorm:"type:text;not null;uniqueIndex"`
	ProviderReference string       `json:"provider_reference" gorm:"type:text;not null;uniqueIndex"`
	CustomerName      string       `json:"customer_name" gorm:"type:text;not null"`
	CustomerEmail     string       `json:"customer_email" gorm:"type:text;not null"`
	TotalAmount       int64        `json:"total_amount" gorm:"not null"` // cents
	AmountPaid        int64        `json:"amount_paid" gorm:"not null;default:0"`
	AmountDue         int64        `json:"amount_due" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:text;not null;default:'ZAR'"`
	Status            Status       `json:"status" gorm:"type:text;not null;default:'draft'"`
	PaidAt            *time.Time   `json:"paid_at"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// ApplyPayment credits amount cents against the invoice and moves the
// status forward. The paid amount is capped at the invoice total so the sum
// invariant survives gateway overpayment; the overflow, if any, is returned
// for the audit trail.
func (i *Invoice) ApplyPayment(amount int64, at time.Time) (overpaid int64) {
	paid := i.AmountPaid + amount
	if paid > i.TotalAmount {
		overpaid = paid - i.TotalAmount
		paid = i.TotalAmount
	}
	i.AmountPaid = paid
	i.AmountDue = i.TotalAmount - paid

	if paid >= i.TotalAmount {
		i.Status = StatusPaid
		at := at.UTC()
		i.PaidAt = &at
	} else if paid > 0 {
		i.Status = StatusPartial
	}
	return overpaid
}

// ApplyGatewayOutcome records a failed/cancelled gateway notification.
// Paid is terminal: a late failure or cancellation must never downgrade an
// invoice that has already been settled. Returns false when the outcome was
// suppressed by that rule.
func (i *Invoice) ApplyGatewayOutcome(status Status) bool {
	if i.Status == StatusPaid {
		return false
	}
	i.Status = status
	return true
}
