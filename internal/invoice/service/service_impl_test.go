package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	auditrepo "github.com/karoonet/billing/internal/audit/repository"
	auditservice "github.com/karoonet/billing/internal/audit/service"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	invoicerepo "github.com/karoonet/billing/internal/invoice/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", strip))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", strip))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&auditdomain.Entry{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) invoicedomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	return NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     invoicerepo.Provide(),
		AuditSvc: auditSvc,
	})
}

func seedInvoice(t *testing.T, db *gorm.DB, total int64, status invoicedomain.Status) *invoicedomain.Invoice {
	t.Helper()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	invoice := &invoicedomain.Invoice{
		ID:                node.Generate(),
		InvoiceNumber:     "INV-2025-" + node.Generate().String(),
		ProviderReference: "REF-" + node.Generate().String(),
		CustomerName:      "Thandi Nkosi",
		CustomerEmail:     "thandi@example.co.za",
		TotalAmount:       total,
		AmountDue:         total,
		Currency:          "ZAR",
		Status:            status,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func auditEntries(t *testing.T, db *gorm.DB, invoiceID snowflake.ID) []auditdomain.Entry {
	t.Helper()

	var entries []auditdomain.Entry
	require.NoError(t, db.Where("invoice_id = ?", invoiceID).Order("created_at asc").Find(&entries).Error)
	return entries
}

func TestRecordManualPaymentSettlesInvoice(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusSent)

	updated, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID:     invoice.ID,
		Amount:        55145,
		PaymentMethod: "eft",
		Reference:     "FNB-20250812-001",
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, updated.Status)
	require.EqualValues(t, 55145, updated.AmountPaid)
	require.EqualValues(t, 0, updated.AmountDue)
	require.NotNil(t, updated.PaidAt)

	entries := auditEntries(t, db, invoice.ID)
	require.Len(t, entries, 1)
	require.Equal(t, auditdomain.EventManualPayment, entries[0].EventType)
	require.Equal(t, "manual", entries[0].Metadata["source"])
	require.Equal(t, "eft", entries[0].Metadata["payment_method"])
	require.EqualValues(t, 55145, entries[0].Metadata["amount"])
}

func TestRecordManualPaymentPartial(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusSent)

	updated, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    20000,
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPartial, updated.Status)
	require.EqualValues(t, 20000, updated.AmountPaid)
	require.EqualValues(t, 35145, updated.AmountDue)
	require.Nil(t, updated.PaidAt)
}

func TestRecordManualPaymentOverpaymentCapsAtTotal(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusSent)

	updated, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    60000,
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, updated.Status)
	require.EqualValues(t, 55145, updated.AmountPaid)
	require.EqualValues(t, 0, updated.AmountDue)

	entries := auditEntries(t, db, invoice.ID)
	require.Len(t, entries, 1)
	require.EqualValues(t, 4855, entries[0].Metadata["overpaid"])
}

func TestRecordManualPaymentRejectsPaidInvoice(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusPaid)

	_, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    10000,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceAlreadyPaid)
	require.Empty(t, auditEntries(t, db, invoice.ID))
}

func TestRecordManualPaymentRejectsArchivedInvoice(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusArchived)

	_, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    10000,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceArchived)
}

func TestRecordManualPaymentUnknownInvoice(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)

	_, err := svc.RecordManualPayment(context.Background(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID: snowflake.ID(424242),
		Amount:    10000,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestRecordManualPaymentValidation(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)
	invoice := seedInvoice(t, db, 55145, invoicedomain.StatusSent)

	tests := []struct {
		name string
		req  invoicedomain.RecordManualPaymentRequest
		want error
	}{
		{
			name: "missing invoice id",
			req:  invoicedomain.RecordManualPaymentRequest{Amount: 10000},
			want: invoicedomain.ErrInvalidInvoice,
		},
		{
			name: "zero amount",
			req:  invoicedomain.RecordManualPaymentRequest{InvoiceID: invoice.ID},
			want: invoicedomain.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			req:  invoicedomain.RecordManualPaymentRequest{InvoiceID: invoice.ID, Amount: -500},
			want: invoicedomain.ErrInvalidAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordManualPayment(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateDefaultsAndGetByID(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)

	invoice := &invoicedomain.Invoice{
		InvoiceNumber:     "INV-2025-00042",
		ProviderReference: "REF-00042",
		CustomerName:      "Sipho Dlamini",
		CustomerEmail:     "sipho@example.co.za",
		TotalAmount:       29970,
	}
	require.NoError(t, svc.Create(context.Background(), invoice))
	require.NotZero(t, invoice.ID)
	require.Equal(t, invoicedomain.StatusDraft, invoice.Status)
	require.Equal(t, "ZAR", invoice.Currency)
	require.EqualValues(t, 29970, invoice.AmountDue)

	found, err := svc.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.InvoiceNumber, found.InvoiceNumber)
	require.EqualValues(t, 29970, found.TotalAmount)
}

func TestCreateValidation(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)

	err := svc.Create(context.Background(), &invoicedomain.Invoice{
		InvoiceNumber:     "INV-2025-00099",
		ProviderReference: "REF-00099",
		TotalAmount:       0,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvalidAmount)

	err = svc.Create(context.Background(), &invoicedomain.Invoice{
		InvoiceNumber: "INV-2025-00100",
		TotalAmount:   1000,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvalidInvoice)
}

func TestGetByIDNotFound(t *testing.T) {
	db := setupDB(t)
	svc := newTestService(t, db)

	_, err := svc.GetByID(context.Background(), snowflake.ID(987654))
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}
