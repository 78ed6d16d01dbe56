package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	auditservice "github.com/karoonet/billing/internal/audit/service"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	"github.com/karoonet/billing/internal/notification"
	obsmetrics "github.com/karoonet/billing/internal/observability/metrics"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	InvoiceRepo invoicedomain.Repository
	AuditSvc    auditdomain.Service
	Repo        paymentdomain.Repository
	Notifier    *notification.Dispatcher `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics      `optional:"true"`
}

// Service reconciles normalized gateway events against invoices. It is the
// only writer of invoice settlement state on the webhook path.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	invoiceRepo invoicedomain.Repository
	auditSvc    auditdomain.Service
	repo        paymentdomain.Repository
	notifier    *notification.Dispatcher
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		invoiceRepo: p.InvoiceRepo,
		auditSvc:    p.AuditSvc,
		repo:        p.Repo,
		notifier:    p.Notifier,
		obsMetrics:  p.ObsMetrics,
	}
}

// ProcessEvent applies one gateway event exactly once. Deliveries are
// deduplicated on (provider_reference, provider_transaction_id) in the
// store; redelivery of an already applied event returns
// ErrEventAlreadyProcessed without touching the invoice. A redelivery of an
// event whose first attempt crashed between insert and apply is picked up
// and finished here, which is why applied_at is set inside the same
// transaction as the invoice mutation.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.FindByReference(ctx, s.db, event.ProviderReference)
	if err != nil {
		return err
	}
	if invoice == nil {
		s.auditRejected(ctx, event, "unknown_reference")
		if s.obsMetrics != nil {
			s.obsMetrics.RecordPaymentEvent(ctx, string(event.Status), "rejected")
		}
		return invoicedomain.ErrInvoiceNotFound
	}

	now := time.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:                    s.genID.Generate(),
		InvoiceID:             &invoice.ID,
		ProviderReference:     event.ProviderReference,
		ProviderTransactionID: event.ProviderTransactionID,
		RawStatus:             event.RawStatus,
		Status:                event.Status,
		Amount:                event.Amount,
		SignatureValid:        event.SignatureValid,
		Payload:               datatypes.JSON(event.RawPayload),
		ReceivedAt:            now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.ProviderReference, event.ProviderTransactionID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.AppliedAt != nil {
			s.auditDuplicate(ctx, invoice.ID, event)
			if s.obsMetrics != nil {
				s.obsMetrics.RecordPaymentEvent(ctx, string(event.Status), "duplicate")
			}
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	outcome, err := s.applyEvent(ctx, stored, event, invoice.ID, now)
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, string(event.Status), outcome.auditType)
	}
	s.notify(ctx, outcome)

	s.log.Info("payment event reconciled",
		zap.String("reference", event.ProviderReference),
		zap.String("transaction_id", event.ProviderTransactionID),
		zap.String("status", string(event.Status)),
		zap.String("outcome", outcome.auditType),
	)
	return nil
}

type applyOutcome struct {
	auditType string
	invoice   invoicedomain.Invoice
	settled   bool
	failed    bool
}

// applyEvent runs the settlement transaction: lock the invoice row, mutate
// it according to the event status, mark the event applied, and append the
// audit entry. All four land or none do.
func (s *Service) applyEvent(
	ctx context.Context,
	stored *paymentdomain.EventRecord,
	event *paymentdomain.PaymentEvent,
	invoiceID snowflake.ID,
	appliedAt time.Time,
) (applyOutcome, error) {
	var outcome applyOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.LockByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		metadata := datatypes.JSONMap{
			"transaction_id": event.ProviderTransactionID,
			"gateway_status": event.RawStatus,
			"amount":         event.Amount,
		}

		switch event.Status {
		case paymentdomain.StatusPaid:
			overpaid := invoice.ApplyPayment(event.Amount, appliedAt)
			if overpaid > 0 {
				metadata["overpaid"] = overpaid
			}
			if err := s.invoiceRepo.UpdateSettlement(ctx, tx, invoice); err != nil {
				return err
			}
			outcome.auditType = auditdomain.EventPaymentApplied
			outcome.settled = invoice.Status == invoicedomain.StatusPaid

		case paymentdomain.StatusFailed, paymentdomain.StatusCancelled:
			applied := invoice.ApplyGatewayOutcome(invoicedomain.Status(event.Status))
			if applied {
				if err := s.invoiceRepo.UpdateSettlement(ctx, tx, invoice); err != nil {
					return err
				}
				outcome.failed = event.Status == paymentdomain.StatusFailed
			} else {
				metadata["suppressed"] = "invoice_already_paid"
			}
			outcome.auditType = auditdomain.EventPaymentApplied

		default:
			// Processing and unknown statuses acknowledge the delivery but
			// never move money.
			outcome.auditType = auditdomain.EventPaymentVerified
		}

		if err := s.repo.MarkApplied(ctx, tx, stored.ID, appliedAt); err != nil {
			return err
		}

		outcome.invoice = *invoice
		return s.auditSvc.Append(auditservice.WithTx(ctx, tx), &auditdomain.Entry{
			InvoiceID:      &invoice.ID,
			EventType:      outcome.auditType,
			SignatureValid: event.SignatureValid,
			RawPayload:     datatypes.JSON(event.RawPayload),
			Metadata:       metadata,
		})
	})
	if err != nil {
		return applyOutcome{}, err
	}
	return outcome, nil
}

func (s *Service) notify(ctx context.Context, outcome applyOutcome) {
	if s.notifier == nil {
		return
	}
	switch {
	case outcome.settled:
		s.notifier.PaymentReceived(ctx, outcome.invoice)
	case outcome.failed:
		s.notifier.PaymentFailed(ctx, outcome.invoice)
	}
}

func (s *Service) auditRejected(ctx context.Context, event *paymentdomain.PaymentEvent, reason string) {
	entry := &auditdomain.Entry{
		EventType:      auditdomain.EventPaymentRejected,
		SignatureValid: event.SignatureValid,
		RawPayload:     datatypes.JSON(event.RawPayload),
		Metadata: datatypes.JSONMap{
			"reference":      event.ProviderReference,
			"transaction_id": event.ProviderTransactionID,
			"reason":         reason,
		},
	}
	if err := s.auditSvc.Append(ctx, entry); err != nil {
		s.log.Error("append rejection audit entry", zap.Error(err))
	}
}

func (s *Service) auditDuplicate(ctx context.Context, invoiceID snowflake.ID, event *paymentdomain.PaymentEvent) {
	entry := &auditdomain.Entry{
		InvoiceID:      &invoiceID,
		EventType:      auditdomain.EventPaymentDuplicate,
		SignatureValid: event.SignatureValid,
		RawPayload:     datatypes.JSON(event.RawPayload),
		Metadata: datatypes.JSONMap{
			"transaction_id": event.ProviderTransactionID,
			"gateway_status": event.RawStatus,
		},
	}
	if err := s.auditSvc.Append(ctx, entry); err != nil {
		s.log.Error("append duplicate audit entry", zap.Error(err))
	}
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderReference = strings.TrimSpace(event.ProviderReference)
	if event.ProviderReference == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderTransactionID = strings.TrimSpace(event.ProviderTransactionID)
	if event.ProviderTransactionID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if !json.Valid(event.RawPayload) {
		return paymentdomain.ErrInvalidPayload
	}
	if event.Status == paymentdomain.StatusPaid && event.Amount <= 0 {
		return paymentdomain.ErrInvalidAmount
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	return nil
}
