package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("status", "paid"),
		attribute.String("invoice_number", "INV-2025-000123"),
		attribute.String("outcome", "payment_applied"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "invoice_number" {
			t.Fatalf("expected high-cardinality label to be dropped")
		}
	}
}

func TestMetricsSafeOnNilReceiver(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordWebhookReceived(ctx, true)
	m.RecordPaymentEvent(ctx, "paid", "payment_applied")
	m.RecordManualPayment(ctx)
	m.RecordProrataPreview(ctx)
}

func TestNewInstrumentsWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "billing-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordPaymentEvent(context.Background(), "paid", "payment_applied")
}
