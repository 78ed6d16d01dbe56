// Package metrics wires OpenTelemetry counters for the billing domain.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	webhooksReceived metric.Int64Counter
	paymentEvents    metric.Int64Counter
	manualPayments   metric.Int64Counter
	prorataPreviews  metric.Int64Counter
}

// NewProvider configures and registers the meter provider. When metrics are
// disabled a noop provider keeps the instruments callable.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "billing"
	}
	meter := provider.Meter(name)

	webhooksReceived, err := meter.Int64Counter("billing_webhooks_received_total")
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("billing_payment_events_total")
	if err != nil {
		return nil, err
	}
	manualPayments, err := meter.Int64Counter("billing_manual_payments_total")
	if err != nil {
		return nil, err
	}
	prorataPreviews, err := meter.Int64Counter("billing_prorata_previews_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhooksReceived: webhooksReceived,
		paymentEvents:    paymentEvents,
		manualPayments:   manualPayments,
		prorataPreviews:  prorataPreviews,
	}, nil
}

// RecordWebhookReceived increments webhook delivery counts.
func (m *Metrics) RecordWebhookReceived(ctx context.Context, signatureValid bool) {
	if m == nil {
		return
	}
	verdict := "invalid"
	if signatureValid {
		verdict = "valid"
	}
	attrs := FilterAttributes(attribute.String("signature", verdict))
	m.webhooksReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent increments reconciliation outcome counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, status, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordManualPayment increments admin-entered payment counts.
func (m *Metrics) RecordManualPayment(ctx context.Context) {
	if m == nil {
		return
	}
	m.manualPayments.Add(ctx, 1)
}

// RecordProrataPreview increments pro-rata preview counts.
func (m *Metrics) RecordProrataPreview(ctx context.Context) {
	if m == nil {
		return
	}
	m.prorataPreviews.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"signature": {},
	"status":    {},
	"outcome":   {},
	"endpoint":  {},
	"reason":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
