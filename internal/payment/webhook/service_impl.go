package webhook

import (
	"context"
	"encoding/json"
	"time"

	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	obsmetrics "github.com/karoonet/billing/internal/observability/metrics"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"github.com/karoonet/billing/internal/payment/netcash"
	paymentservice "github.com/karoonet/billing/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	AuditSvc   auditdomain.Service
	Adapter    *netcash.Adapter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	auditSvc   auditdomain.Service
	adapter    *netcash.Adapter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		auditSvc:   p.AuditSvc,
		adapter:    p.Adapter,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook records and reconciles one raw gateway delivery. Every
// delivery is written to the audit ledger before any rejection decision, so
// malformed and forged payloads remain inspectable.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte) error {
	receivedAt := time.Now().UTC()

	if !json.Valid(payload) {
		s.auditReceived(ctx, payload, false, "malformed_payload")
		if s.obsMetrics != nil {
			s.obsMetrics.RecordWebhookReceived(ctx, false)
		}
		return paymentdomain.ErrInvalidPayload
	}

	notification, err := s.adapter.Parse(payload)
	if err != nil {
		s.auditReceived(ctx, payload, false, "unparseable_notification")
		if s.obsMetrics != nil {
			s.obsMetrics.RecordWebhookReceived(ctx, false)
		}
		return err
	}

	verified := s.adapter.Verify(notification)
	s.auditReceived(ctx, payload, verified, "")
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookReceived(ctx, verified)
	}
	if !verified {
		s.log.Warn("webhook signature verification failed",
			zap.String("reference", notification.Reference),
			zap.String("transaction_id", notification.TransactionID),
		)
		return paymentdomain.ErrInvalidSignature
	}

	event, err := s.adapter.Normalize(notification, payload, verified, receivedAt)
	if err != nil {
		return err
	}
	return s.paymentSvc.ProcessEvent(ctx, event)
}

func (s *Service) auditReceived(ctx context.Context, payload []byte, verified bool, reason string) {
	raw := payload
	if !json.Valid(raw) {
		encoded, err := json.Marshal(string(payload))
		if err != nil {
			encoded = []byte(`""`)
		}
		raw = encoded
	}

	metadata := datatypes.JSONMap{}
	if reason != "" {
		metadata["reason"] = reason
	}

	entry := &auditdomain.Entry{
		EventType:      auditdomain.EventWebhookReceived,
		SignatureValid: verified,
		RawPayload:     datatypes.JSON(raw),
		Metadata:       metadata,
	}
	if err := s.auditSvc.Append(ctx, entry); err != nil {
		s.log.Error("append webhook audit entry", zap.Error(err))
	}
}
