package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one attempt to pay an order. Rows are never deleted and
// double as the audit trail for the order.
type Payment struct {
	ID                string                 `json:"id"`
	OrderID           string                 `json:"order_id"`
	UserID            string                 `json:"user_id"`
	Method            PaymentMethod          `json:"method"`
	Status            PaymentStatus          `json:"status"`
	Provider          string                 `json:"provider"`
	ExternalID        string                 `json:"external_id,omitempty"`
	ProviderReference string                 `json:"provider_reference,omitempty"`
	Amount            decimal.Decimal        `json:"amount"`
	Currency          string                 `json:"currency"`
	QRPayload         string                 `json:"qr_payload,omitempty"`
	RedirectURL       string                 `json:"redirect_url,omitempty"`
	ClientSecret      string                 `json:"client_secret,omitempty"`
	ErrorCode         string                 `json:"error_code,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`
	ExpiresAt         *time.Time             `json:"expires_at,omitempty"`
	ApprovedAt        *time.Time             `json:"approved_at,omitempty"`
	RefundedAt        *time.Time             `json:"refunded_at,omitempty"`
	// RefundClaimedAt is set while a refund request is with the provider.
	RefundClaimedAt *time.Time `json:"-"`
	ProviderData      map[string]interface{} `json:"provider_data,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// PaymentStatus is the unified status every provider vocabulary maps into.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusApproved   PaymentStatus = "APPROVED"
	PaymentStatusRejected   PaymentStatus = "REJECTED"
	PaymentStatusExpired    PaymentStatus = "EXPIRED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Position along PENDING -> PROCESSING -> {APPROVED|REJECTED|EXPIRED} -> REFUNDED.
var statusRank = map[PaymentStatus]int{
	PaymentStatusPending:    0,
	PaymentStatusProcessing: 1,
	PaymentStatusApproved:   2,
	PaymentStatusRejected:   2,
	PaymentStatusExpired:    2,
	PaymentStatusRefunded:   3,
}

var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusProcessing,
		PaymentStatusApproved,
		PaymentStatusRejected,
		PaymentStatusExpired,
	},
	PaymentStatusProcessing: {
		PaymentStatusApproved,
		PaymentStatusRejected,
		PaymentStatusExpired,
	},
	PaymentStatusApproved: {
		PaymentStatusRefunded,
	},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether nothing may leave s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusRejected || s == PaymentStatusExpired || s == PaymentStatusRefunded
}

// IsActive reports whether s counts against the one-active-payment-per-order rule.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}

// Rank orders statuses along the chain. Unknown statuses rank -1.
func (s PaymentStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanTransitionTo reports whether s -> next is a legal move. A status never
// transitions to itself.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SourceStatuses lists every status from which next is reachable in one move.
// It is the expected-status set of a compare-and-set update.
func SourceStatuses(next PaymentStatus) []PaymentStatus {
	var sources []PaymentStatus
	for _, from := range []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusApproved} {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ActiveStatuses are the statuses covered by the partial unique index on
// payments(order_id).
func ActiveStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing}
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodCash   PaymentMethod = "cash"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodWallet, PaymentMethodPix, PaymentMethodCash:
		return true
	}
	return false
}

// StatusUpdate carries the fields written together with a status change.
// Empty strings and nil pointers leave the stored value untouched.
type StatusUpdate struct {
	Status            PaymentStatus
	ExternalID        string
	ProviderReference string
	QRPayload         string
	RedirectURL       string
	ClientSecret      string
	ErrorCode         string
	ErrorMessage      string
	ExpiresAt         *time.Time
	ApprovedAt        *time.Time
	RefundedAt        *time.Time
	ProviderData      map[string]interface{}

	// ReplacesExternalID, when set, guards the write on the stored provider
	// id and swaps it for ExternalID in the same update.
	ReplacesExternalID string
}

// PaymentFilter narrows repository listings.
type PaymentFilter struct {
	OrderID       string
	Statuses      []PaymentStatus
	ExpiresBefore *time.Time
	Limit         int
}
