package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/karoonet/billing/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).
		Where("id = ?", id).
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

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Invoice, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}

	var item domain.Invoice
	err := db.WithContext(ctx).
		Where("provider_reference = ?", reference).
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

func (r *repo) LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_number, provider_reference, customer_name, customer_email,
			total_amount, amount_paid, amount_due, currency, status, paid_at,
			created_at, updated_at
		 FROM invoices
		 WHERE id = ?
		 FOR UPDATE`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) UpdateSettlement(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET amount_paid = ?, amount_due = ?, status = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.AmountPaid,
		invoice.AmountDue,
		invoice.Status,
		invoice.PaidAt,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}
