// Package netcash adapts Netcash Pay Now webhook notifications into
// normalized payment events.
package netcash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
)

// Notification is the wire shape of a Netcash Pay Now webhook body.
type Notification struct {
	Reference     string `json:"Reference"`
	TransactionID string `json:"TransactionId"`
	Status        string `json:"Status"`
	Amount        string `json:"Amount"`
	Extra1        string `json:"Extra1"`
	Extra2        string `json:"Extra2"`
	Extra3        string `json:"Extra3"`
	Signature     string `json:"Signature"`
}

// Adapter verifies and normalizes Netcash notifications. The webhook secret
// is shared out of band with the gateway; an adapter is never constructed
// without one.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: secret}, nil
}

// Parse decodes the raw webhook body. It does not verify the signature;
// callers record the delivery first and verify separately so that rejected
// payloads still leave an audit trail.
func (a *Adapter) Parse(payload []byte) (*Notification, error) {
	var notification Notification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(notification.Reference) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(notification.TransactionID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	return &notification, nil
}

// Verify reports whether the notification carries a valid HMAC-SHA256
// signature over Reference, TransactionId, Status and Amount in that order.
// A missing signature is a plain false, never an error: the verdict feeds
// the audit ledger either way.
func (a *Adapter) Verify(notification *Notification) bool {
	signature := strings.TrimSpace(notification.Signature)
	if signature == "" {
		return false
	}
	expected := a.sign(notification.Reference, notification.TransactionID, notification.Status, notification.Amount)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// Sign computes the signature a well-formed notification should carry.
// Exposed for test fixtures and for replaying deliveries against sandboxes.
func (a *Adapter) Sign(reference, transactionID, status, amount string) string {
	return a.sign(reference, transactionID, status, amount)
}

func (a *Adapter) sign(reference, transactionID, status, amount string) string {
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(reference))
	_, _ = mac.Write([]byte(transactionID))
	_, _ = mac.Write([]byte(status))
	_, _ = mac.Write([]byte(amount))
	return hex.EncodeToString(mac.Sum(nil))
}

// Normalize converts a parsed notification into the internal event shape.
func (a *Adapter) Normalize(notification *Notification, payload []byte, verified bool, receivedAt time.Time) (*paymentdomain.PaymentEvent, error) {
	amount, err := ParseAmount(notification.Amount)
	if err != nil {
		return nil, err
	}

	rawStatus := strings.TrimSpace(notification.Status)
	return &paymentdomain.PaymentEvent{
		ProviderReference:     strings.TrimSpace(notification.Reference),
		ProviderTransactionID: strings.TrimSpace(notification.TransactionID),
		RawStatus:             rawStatus,
		Status:                paymentdomain.MapGatewayStatus(rawStatus),
		Amount:                amount,
		SignatureValid:        verified,
		ReceivedAt:            receivedAt.UTC(),
		RawPayload:            payload,
	}, nil
}

// ParseAmount converts Netcash's decimal Rand string into cents. The
// gateway sends at most two fractional digits; more than two is rejected
// rather than rounded so a malformed amount never settles an invoice.
func ParseAmount(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, paymentdomain.ErrInvalidAmount
	}

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole = value[:idx]
		frac = value[idx+1:]
	}
	if whole == "" || len(frac) > 2 {
		return 0, paymentdomain.ErrInvalidAmount
	}

	var cents int64
	for _, digit := range whole {
		if digit < '0' || digit > '9' {
			return 0, paymentdomain.ErrInvalidAmount
		}
		cents = cents*10 + int64(digit-'0')
		if cents > (1<<62)/100 {
			return 0, paymentdomain.ErrInvalidAmount
		}
	}
	cents *= 100

	scale := int64(10)
	for _, digit := range frac {
		if digit < '0' || digit > '9' {
			return 0, paymentdomain.ErrInvalidAmount
		}
		cents += int64(digit-'0') * scale
		scale /= 10
	}

	if cents <= 0 {
		return 0, paymentdomain.ErrInvalidAmount
	}
	return cents, nil
}
