package notification

import (
	"context"
	"errors"
	"testing"

	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureProvider struct {
	to      []string
	subject string
	body    string
	err     error
	calls   int
}

func (p *captureProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.calls++
	p.to = to
	p.subject = subject
	p.body = htmlBody
	return p.err
}

func TestPaymentReceivedSendsReceipt(t *testing.T) {
	provider := &captureProvider{}
	dispatcher := NewDispatcher(Params{Log: zap.NewNop(), Provider: provider})

	dispatcher.PaymentReceived(context.Background(), invoicedomain.Invoice{
		InvoiceNumber: "INV-2025-000123",
		CustomerName:  "Thandi Nkosi",
		CustomerEmail: "thandi@example.co.za",
		Currency:      "ZAR",
		TotalAmount:   55145,
	})

	require.Equal(t, 1, provider.calls)
	require.Equal(t, []string{"thandi@example.co.za"}, provider.to)
	require.Contains(t, provider.subject, "INV-2025-000123")
	require.Contains(t, provider.body, "ZAR 551.45")
}

func TestDispatchSkipsMissingEmail(t *testing.T) {
	provider := &captureProvider{}
	dispatcher := NewDispatcher(Params{Log: zap.NewNop(), Provider: provider})

	dispatcher.PaymentFailed(context.Background(), invoicedomain.Invoice{
		InvoiceNumber: "INV-2025-000124",
	})

	require.Zero(t, provider.calls)
}

func TestDispatchSwallowsProviderError(t *testing.T) {
	provider := &captureProvider{err: errors.New("smtp unreachable")}
	dispatcher := NewDispatcher(Params{Log: zap.NewNop(), Provider: provider})

	dispatcher.PaymentFailed(context.Background(), invoicedomain.Invoice{
		InvoiceNumber: "INV-2025-000125",
		CustomerEmail: "billing@example.co.za",
		Currency:      "ZAR",
		AmountDue:     29970,
	})

	require.Equal(t, 1, provider.calls)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "ZAR 551.45", FormatAmount("ZAR", 55145))
	require.Equal(t, "ZAR 0.05", FormatAmount("ZAR", 5))
	require.Equal(t, "ZAR -12.00", FormatAmount("ZAR", -1200))
}
