package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

// Gateway is the contract every payment provider adapter implements.
type Gateway interface {
	Name() ProviderType
	// IsConfigured reports whether credentials are present.
	IsConfigured() bool
	// IsEnabled consults the runtime setting payments.<name>.enabled so a
	// provider can be switched off without a redeploy.
	IsEnabled(ctx context.Context) bool
	SupportedMethods() []entity.PaymentMethod

	// CreatePayment starts a charge for order. Provider-side failures and
	// declines come back as a PaymentResult with Success=false; only
	// contract violations are returned as errors.
	CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *PaymentData) (*PaymentResult, error)

	// ProcessWebhook authenticates and parses a notification. It must not
	// touch persisted state.
	ProcessWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error)

	// MapStatus returns "" for provider statuses it does not know.
	MapStatus(providerStatus string) entity.PaymentStatus
	TranslateError(err error) string
	SupportsFeature(feature Feature) bool
}

// CardVault is implemented by gateways that can store cards for reuse.
// Discover it with Vault, never by provider name.
type CardVault interface {
	GetOrCreateCustomer(ctx context.Context, customer CustomerInfo) (string, error)
	SaveCard(ctx context.Context, customerID, cardToken string, makeDefault bool) (*entity.SavedCard, error)
	DeleteCard(ctx context.Context, customerID, cardID string) error
	ListCards(ctx context.Context, customerID string) ([]entity.SavedCard, error)
	SetDefaultCard(ctx context.Context, customerID, cardID string) error
	ChargeWithSavedCard(ctx context.Context, customerID, cardID string, order *entity.Order, amount decimal.Decimal, data *PaymentData) (*PaymentResult, error)
	RequiresCVVForSavedCard() bool
}

// Refunder is implemented by gateways that can return funds through the
// provider API. Gateways without it are refunded out of band.
type Refunder interface {
	Refund(ctx context.Context, payment *entity.Payment, amount decimal.Decimal) (*RefundResult, error)
}

type CustomerInfo struct {
	UserID string
	Email  string
	Name   string
}

// PaymentData is the provider-agnostic charge request.
type PaymentData struct {
	Method entity.PaymentMethod
	// PaymentID is our payment id; adapters echo it to the provider so
	// webhooks can be matched before an external id is known.
	PaymentID   string
	CardToken   string
	SavedCardID string
	// CustomerID is the vault customer resolved for SavedCardID.
	CustomerID  string
	PayerEmail  string
	PayerName   string
	PayerTaxID  string
	Description string
	ReturnURL   string
	Currency    string
}

// PaymentResult is an adapter's normalized answer.
type PaymentResult struct {
	Success           bool
	Status            entity.PaymentStatus
	ExternalID        string
	ProviderReference string
	RedirectURL       string
	ClientSecret      string
	QRPayload         string
	ExpiresAt         *time.Time
	// Error is a message safe to show to the payer.
	Error     string
	ErrorCode string
	Raw       map[string]interface{}
}

// Rejected builds the result for a decline or provider failure.
func Rejected(code, message string) *PaymentResult {
	return &PaymentResult{
		Success:   false,
		Status:    entity.PaymentStatusRejected,
		ErrorCode: code,
		Error:     message,
	}
}

// WebhookResult holds the verified events of one delivery. It is empty for
// notifications that carry nothing to reconcile.
type WebhookResult struct {
	Events []entity.WebhookEvent
}

type RefundResult struct {
	RefundID string
	Status   entity.PaymentStatus
}

// ProviderType is the closed set of gateways.
type ProviderType string

const (
	ProviderTypeStripe      ProviderType = "stripe"
	ProviderTypeMercadoPago ProviderType = "mercadopago"
	ProviderTypePix         ProviderType = "pix"
	ProviderTypeCash        ProviderType = "cash"
)

func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderTypeStripe, ProviderTypeMercadoPago, ProviderTypePix, ProviderTypeCash:
		return true
	}
	return false
}

type Feature string

const (
	FeatureSavedCards         Feature = "saved_cards"
	FeatureRefunds            Feature = "refunds"
	FeatureRedirect           Feature = "redirect"
	FeatureClientConfirmation Feature = "client_confirmation"
	FeatureQRCode             Feature = "qr_code"
	FeatureManualConfirmation Feature = "manual_confirmation"
	FeatureExpiry             Feature = "expiry"
)

// ProviderError reports a contract or configuration problem inside an
// adapter, as opposed to a declined or failed charge.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

const (
	ErrCodeNotConfigured   = "not_configured"
	ErrCodeMissingSecret   = "missing_webhook_secret"
	ErrCodeMalformedNotice = "malformed_webhook"
)

func NotConfigured(name ProviderType) *ProviderError {
	return &ProviderError{Code: ErrCodeNotConfigured, Message: string(name) + " gateway is not configured"}
}

func MissingWebhookSecret(name ProviderType) *ProviderError {
	return &ProviderError{Code: ErrCodeMissingSecret, Message: string(name) + " webhook secret is not configured"}
}
