package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/karoonet/billing/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, reference, transactionID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, provider_reference, provider_transaction_id,
			raw_status, status, amount, signature_valid, payload,
			received_at, applied_at
		 FROM payment_events
		 WHERE provider_reference = ? AND provider_transaction_id = ?
		 LIMIT 1`,
		reference,
		transactionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (
			id, invoice_id, provider_reference, provider_transaction_id,
			raw_status, status, amount, signature_valid, payload,
			received_at, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_reference, provider_transaction_id) DO NOTHING`,
		event.ID,
		event.InvoiceID,
		event.ProviderReference,
		event.ProviderTransactionID,
		event.RawStatus,
		event.Status,
		event.Amount,
		event.SignatureValid,
		event.Payload,
		event.ReceivedAt,
		event.AppliedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkApplied(ctx context.Context, tx *gorm.DB, id snowflake.ID, appliedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET applied_at = ?
		 WHERE id = ? AND applied_at IS NULL`,
		appliedAt,
		id,
	).Error
}
