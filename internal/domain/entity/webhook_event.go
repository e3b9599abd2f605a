package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookEvent is a verified provider notification, normalized. It lives
// only for the duration of one reconciliation call.
type WebhookEvent struct {
	Provider  string `json:"provider"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	// ExternalID is the provider's id for the charge.
	ExternalID string `json:"external_id"`
	// Reference is our payment id as echoed back by authenticated
	// provider data (metadata, external_reference). Used when ExternalID
	// has not been bound yet.
	Reference      string           `json:"reference,omitempty"`
	ProviderStatus string           `json:"provider_status"`
	Status         PaymentStatus    `json:"status"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ErrorCode      string           `json:"error_code,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	ReceivedAt     time.Time        `json:"received_at"`
}

// PaymentEvent is published whenever a payment status change is applied.
type PaymentEvent struct {
	Type       string          `json:"type"`
	PaymentID  string          `json:"payment_id"`
	OrderID    string          `json:"order_id"`
	Provider   string          `json:"provider"`
	Method     PaymentMethod   `json:"method"`
	From       PaymentStatus   `json:"from"`
	To         PaymentStatus   `json:"to"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
}

const PaymentEventStatusChanged = "payment.status_changed"

// WebhookEventRecord is a journaled WebhookEvent.
type WebhookEventRecord struct {
	WebhookEvent
	Outcome   string    `json:"outcome"`
	LastError string    `json:"last_error,omitempty"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}
