package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	auditservice "github.com/karoonet/billing/internal/audit/service"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	obsmetrics "github.com/karoonet/billing/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       invoicedomain.Repository
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       invoicedomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	if id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) Create(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if invoice == nil {
		return invoicedomain.ErrInvalidInvoice
	}
	if invoice.TotalAmount <= 0 {
		return invoicedomain.ErrInvalidAmount
	}
	if strings.TrimSpace(invoice.ProviderReference) == "" {
		return invoicedomain.ErrInvalidInvoice
	}

	now := time.Now().UTC()
	if invoice.ID == 0 {
		invoice.ID = s.genID.Generate()
	}
	if invoice.Status == "" {
		invoice.Status = invoicedomain.StatusDraft
	}
	if invoice.Currency == "" {
		invoice.Currency = "ZAR"
	}
	invoice.AmountDue = invoice.TotalAmount - invoice.AmountPaid
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	return s.repo.Insert(ctx, s.db, invoice)
}

// RecordManualPayment credits an admin-entered payment against an invoice
// using the same monotonic arithmetic as the gateway reconciler, and writes
// one manual_payment audit entry in the same transaction.
func (s *Service) RecordManualPayment(ctx context.Context, req invoicedomain.RecordManualPaymentRequest) (invoicedomain.Invoice, error) {
	if req.InvoiceID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}
	if req.Amount <= 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidAmount
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.LockByID(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if inv.Status == invoicedomain.StatusPaid {
			return invoicedomain.ErrInvoiceAlreadyPaid
		}
		if inv.Status == invoicedomain.StatusArchived {
			return invoicedomain.ErrInvoiceArchived
		}

		overpaid := inv.ApplyPayment(req.Amount, paymentDate)
		inv.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateSettlement(ctx, tx, inv); err != nil {
			return err
		}

		invoiceID := inv.ID
		metadata := datatypes.JSONMap{
			"source":         "manual",
			"payment_method": strings.TrimSpace(req.PaymentMethod),
			"reference":      strings.TrimSpace(req.Reference),
			"amount":         req.Amount,
			"payment_date":   paymentDate.UTC().Format(time.RFC3339),
			"status":         string(inv.Status),
			"amount_paid":    inv.AmountPaid,
			"amount_due":     inv.AmountDue,
		}
		if overpaid > 0 {
			metadata["overpaid"] = overpaid
		}

		txCtx := auditservice.WithTx(ctx, tx)
		if err := s.auditSvc.Append(txCtx, &auditdomain.Entry{
			InvoiceID: &invoiceID,
			EventType: auditdomain.EventManualPayment,
			Metadata:  metadata,
		}); err != nil {
			return err
		}

		updated = *inv
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordManualPayment(ctx)
	}
	s.log.Info("manual payment recorded",
		zap.String("invoice_id", updated.ID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}
