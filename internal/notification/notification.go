// Package notification sends customer-facing emails for settlement
// outcomes. Delivery is best effort: a mail failure is logged and never
// rolls back reconciliation.
package notification

import (
	"context"
	"fmt"
	"strings"

	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	"github.com/karoonet/billing/internal/notification/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
}

type Dispatcher struct {
	log      *zap.Logger
	provider email.Provider
}

func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{
		log:      p.Log.Named("notification"),
		provider: p.Provider,
	}
}

// PaymentReceived emails a receipt once an invoice is fully settled.
func (d *Dispatcher) PaymentReceived(ctx context.Context, invoice invoicedomain.Invoice) {
	to := strings.TrimSpace(invoice.CustomerEmail)
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Payment received for invoice %s", invoice.InvoiceNumber)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>We received your payment of %s for invoice %s. Your account is up to date.</p>",
		invoice.CustomerName,
		FormatAmount(invoice.Currency, invoice.TotalAmount),
		invoice.InvoiceNumber,
	)
	d.send(ctx, to, subject, body, invoice.InvoiceNumber)
}

// PaymentFailed emails the customer after a failed gateway payment.
func (d *Dispatcher) PaymentFailed(ctx context.Context, invoice invoicedomain.Invoice) {
	to := strings.TrimSpace(invoice.CustomerEmail)
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Payment failed for invoice %s", invoice.InvoiceNumber)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your payment of %s for invoice %s could not be processed. Please retry or use a different payment method.</p>",
		invoice.CustomerName,
		FormatAmount(invoice.Currency, invoice.AmountDue),
		invoice.InvoiceNumber,
	)
	d.send(ctx, to, subject, body, invoice.InvoiceNumber)
}

func (d *Dispatcher) send(ctx context.Context, to, subject, body, invoiceNumber string) {
	if err := d.provider.Send(ctx, []string{to}, subject, body); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err),
		)
		return
	}
	d.log.Info("notification sent",
		zap.String("invoice_number", invoiceNumber),
		zap.String("subject", subject),
	)
}

// FormatAmount renders cents as a human amount, e.g. "ZAR 551.45".
func FormatAmount(currency string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
