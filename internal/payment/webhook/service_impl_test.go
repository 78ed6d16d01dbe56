package webhook

import (
	"context"
	"encoding/json"
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
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"github.com/karoonet/billing/internal/payment/netcash"
	paymentrepo "github.com/karoonet/billing/internal/payment/repository"
	paymentservice "github.com/karoonet/billing/internal/payment/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "nc_test_secret"

func setupIngress(t *testing.T) (*gorm.DB, paymentdomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

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
		&paymentdomain.EventRecord{},
		&auditdomain.Entry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		InvoiceRepo: invoicerepo.Provide(),
		AuditSvc:    auditSvc,
		Repo:        paymentrepo.Provide(),
	})

	adapter, err := netcash.NewAdapter(testSecret)
	require.NoError(t, err)

	ingress := NewService(Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		AuditSvc:   auditSvc,
		Adapter:    adapter,
	})
	return db, ingress, node
}

func signedPayload(t *testing.T, secret, reference, transactionID, status, amount string) []byte {
	t.Helper()

	adapter, err := netcash.NewAdapter(secret)
	require.NoError(t, err)

	payload, err := json.Marshal(netcash.Notification{
		Reference:     reference,
		TransactionID: transactionID,
		Status:        status,
		Amount:        amount,
		Signature:     adapter.Sign(reference, transactionID, status, amount),
	})
	require.NoError(t, err)
	return payload
}

func TestIngestWebhookSettlesInvoice(t *testing.T) {
	db, ingress, node := setupIngress(t)
	ctx := context.Background()

	invoice := &invoicedomain.Invoice{
		ID:                node.Generate(),
		InvoiceNumber:     "INV-2025-000123",
		ProviderReference: "INV-2025-000123",
		CustomerEmail:     "thandi@example.co.za",
		TotalAmount:       55145,
		AmountDue:         55145,
		Currency:          "ZAR",
		Status:            invoicedomain.StatusSent,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(invoice).Error)

	payload := signedPayload(t, testSecret, "INV-2025-000123", "NC-TX-1", "Completed", "551.45")
	require.NoError(t, ingress.IngestWebhook(ctx, payload))

	var got invoicedomain.Invoice
	require.NoError(t, db.Where("id = ?", invoice.ID).First(&got).Error)
	require.Equal(t, invoicedomain.StatusPaid, got.Status)
	require.EqualValues(t, 55145, got.AmountPaid)

	var received []auditdomain.Entry
	require.NoError(t, db.Where("event_type = ?", auditdomain.EventWebhookReceived).Find(&received).Error)
	require.Len(t, received, 1)
	require.True(t, received[0].SignatureValid)
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	db, ingress, node := setupIngress(t)
	ctx := context.Background()

	invoice := &invoicedomain.Invoice{
		ID:                node.Generate(),
		ProviderReference: "INV-2025-000124",
		TotalAmount:       29970,
		AmountDue:         29970,
		Currency:          "ZAR",
		Status:            invoicedomain.StatusSent,
	}
	require.NoError(t, db.Create(invoice).Error)

	payload := signedPayload(t, "wrong_secret", "INV-2025-000124", "NC-TX-1", "Completed", "299.70")
	err := ingress.IngestWebhook(ctx, payload)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	var got invoicedomain.Invoice
	require.NoError(t, db.Where("id = ?", invoice.ID).First(&got).Error)
	require.Equal(t, invoicedomain.StatusSent, got.Status)
	require.Zero(t, got.AmountPaid)

	var received []auditdomain.Entry
	require.NoError(t, db.Where("event_type = ?", auditdomain.EventWebhookReceived).Find(&received).Error)
	require.Len(t, received, 1)
	require.False(t, received[0].SignatureValid)
}

func TestIngestWebhookRecordsMalformedPayload(t *testing.T) {
	db, ingress, _ := setupIngress(t)
	ctx := context.Background()

	err := ingress.IngestWebhook(ctx, []byte("Reference=INV-1&Status=Completed"))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	var received []auditdomain.Entry
	require.NoError(t, db.Where("event_type = ?", auditdomain.EventWebhookReceived).Find(&received).Error)
	require.Len(t, received, 1)
	require.False(t, received[0].SignatureValid)
	require.Equal(t, "malformed_payload", received[0].Metadata["reason"])
}

func TestIngestWebhookUnknownReference(t *testing.T) {
	_, ingress, _ := setupIngress(t)
	ctx := context.Background()

	payload := signedPayload(t, testSecret, "INV-MISSING", "NC-TX-1", "Completed", "100.00")
	err := ingress.IngestWebhook(ctx, payload)
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}
