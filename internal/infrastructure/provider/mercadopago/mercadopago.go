package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

// Payment statuses reported by the API
const (
	StatusApproved    = "approved"
	StatusAuthorized  = "authorized"
	StatusInProcess   = "in_process"
	StatusInMediation = "in_mediation"
	StatusPending     = "pending"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

const (
	notificationTopic  = "payment"
	maxStatementLength = 22
	expirationLayout   = "2006-01-02T15:04:05.000-07:00"
)

// Gateway sends the payer to a hosted checkout (a "preference") and learns
// the outcome from notifications.
type Gateway struct {
	cfg      config.MercadoPagoConfig
	sandbox  bool
	currency string
	api      *client
	settings repository.SettingsReader
	logger   *zap.Logger
	now      func() time.Time
}

func NewGateway(cfg config.MercadoPagoConfig, payments config.PaymentsConfig, settings repository.SettingsReader, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		sandbox:  payments.Sandbox,
		currency: payments.Currency,
		api:      newClient(cfg.BaseURL, cfg.AccessToken, payments.ProviderTimeout),
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) Name() provider.ProviderType {
	return provider.ProviderTypeMercadoPago
}

func (g *Gateway) IsConfigured() bool {
	return g.cfg.AccessToken != ""
}

func (g *Gateway) IsEnabled(ctx context.Context) bool {
	return provider.SettingEnabled(ctx, g.settings, g.Name(), true)
}

func (g *Gateway) SupportedMethods() []entity.PaymentMethod {
	return []entity.PaymentMethod{entity.PaymentMethodWallet}
}

func (g *Gateway) SupportsFeature(feature provider.Feature) bool {
	switch feature {
	case provider.FeatureRedirect, provider.FeatureRefunds:
		return true
	}
	return false
}

// CreatePayment creates a checkout preference. The payment stays PENDING
// until a notification reports the payer's outcome.
func (g *Gateway) CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	if err := provider.ValidateCreate(g, order, amount, data); err != nil {
		return nil, err
	}
	if !g.IsConfigured() {
		return nil, provider.NotConfigured(g.Name())
	}
	if data.PaymentID == "" {
		return nil, domainerrors.Validation("payment id is required for wallet payments")
	}

	req := g.preferenceRequest(order, amount, data)
	var expiresAt *time.Time
	if g.cfg.CheckoutExpiry > 0 {
		at := g.now().Add(g.cfg.CheckoutExpiry)
		expiresAt = &at
		req.Expires = true
		req.ExpirationDateTo = at.Format(expirationLayout)
	}

	pref, err := g.api.createPreference(ctx, req)
	if err != nil {
		g.logger.Error("Failed to create checkout preference",
			zap.String("order_id", order.ID),
			zap.String("payment_id", data.PaymentID),
			zap.Error(err),
		)
		return &provider.PaymentResult{
			Success:   false,
			Status:    entity.PaymentStatusRejected,
			ErrorCode: errorCode(err),
			Error:     g.TranslateError(err),
		}, nil
	}

	redirect := pref.InitPoint
	if g.sandbox && pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}

	g.logger.Info("Checkout preference created",
		zap.String("order_id", order.ID),
		zap.String("preference_id", pref.ID),
	)

	return &provider.PaymentResult{
		Success:           true,
		Status:            entity.PaymentStatusPending,
		ProviderReference: pref.ID,
		RedirectURL:       redirect,
		ExpiresAt:         expiresAt,
		Raw:               map[string]interface{}{"preference_id": pref.ID},
	}, nil
}

func (g *Gateway) preferenceRequest(order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) *preferenceRequest {
	currency := data.Currency
	if currency == "" {
		currency = g.currency
	}
	title := data.Description
	if title == "" {
		title = "Pedido " + order.ID
		if order.Restaurant != nil && order.Restaurant.Name != "" {
			title = order.Restaurant.Name + " - pedido " + order.ID
		}
	}

	req := &preferenceRequest{
		Items: []preferenceItem{{
			ID:         order.ID,
			Title:      title,
			Quantity:   1,
			UnitPrice:  amount.InexactFloat64(),
			CurrencyID: currency,
		}},
		ExternalReference: data.PaymentID,
		NotificationURL:   g.cfg.NotificationURL,
		Metadata: map[string]interface{}{
			"order_id":   order.ID,
			"payment_id": data.PaymentID,
		},
	}
	if len(g.cfg.StatementName) > maxStatementLength {
		req.StatementDescriptor = g.cfg.StatementName[:maxStatementLength]
	} else {
		req.StatementDescriptor = g.cfg.StatementName
	}

	payer := &preferencePayer{Name: data.PayerName, Email: data.PayerEmail}
	if data.PayerTaxID != "" {
		payer.Identification = &identification{Type: taxIDType(data.PayerTaxID), Number: data.PayerTaxID}
	}
	if payer.Name != "" || payer.Email != "" || payer.Identification != nil {
		req.Payer = payer
	}

	urls := backURLs{Success: g.cfg.SuccessURL, Failure: g.cfg.FailureURL, Pending: g.cfg.PendingURL}
	if data.ReturnURL != "" {
		urls.Success = data.ReturnURL
	}
	if urls != (backURLs{}) {
		req.BackURLs = &urls
	}
	if urls.Success != "" {
		req.AutoReturn = StatusApproved
	}
	return req
}

// taxIDType tells CPF (11 digits) from CNPJ.
func taxIDType(doc string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, doc)
	if len(digits) == 11 {
		return "CPF"
	}
	return "CNPJ"
}

// Refund returns the full amount, or a partial one when amount is below
// the captured total.
func (g *Gateway) Refund(ctx context.Context, p *entity.Payment, amount decimal.Decimal) (*provider.RefundResult, error) {
	if p.ExternalID == "" {
		return nil, domainerrors.Validation("payment %s has no provider id to refund", p.ID)
	}

	key := refundKey(p.ID)
	var partial *float64
	if amount.IsPositive() && amount.LessThan(p.Amount) {
		v := amount.InexactFloat64()
		partial = &v
		key += "-" + amount.String()
	}

	r, err := g.api.refundPayment(ctx, p.ExternalID, key, partial)
	if err != nil {
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}

	return &provider.RefundResult{
		RefundID: fmt.Sprintf("%d", r.ID),
		Status:   entity.PaymentStatusRefunded,
	}, nil
}

func refundKey(paymentID string) string {
	return "refund-" + paymentID
}

func (g *Gateway) MapStatus(providerStatus string) entity.PaymentStatus {
	switch strings.ToLower(providerStatus) {
	case StatusApproved:
		return entity.PaymentStatusApproved
	case StatusAuthorized, StatusInProcess, StatusInMediation:
		return entity.PaymentStatusProcessing
	case StatusPending:
		return entity.PaymentStatusPending
	case StatusRejected:
		return entity.PaymentStatusRejected
	case StatusCancelled:
		return entity.PaymentStatusExpired
	case StatusRefunded, StatusChargedBack:
		return entity.PaymentStatusRefunded
	}
	return ""
}

var statusDetailMessages = map[string]string{
	"cc_rejected_insufficient_amount":      "Saldo insuficiente.",
	"cc_rejected_bad_filled_security_code": "Código de segurança inválido.",
	"cc_rejected_bad_filled_date":          "Data de validade inválida.",
	"cc_rejected_bad_filled_other":         "Revise os dados do cartão.",
	"cc_rejected_call_for_authorize":       "Autorize o pagamento com o emissor do cartão.",
	"cc_rejected_card_disabled":            "Cartão desativado. Contate o emissor.",
	"cc_rejected_duplicated_payment":       "Pagamento duplicado.",
	"cc_rejected_high_risk":                "Pagamento recusado por segurança.",
	"cc_rejected_max_attempts":             "Limite de tentativas atingido.",
}

// TranslateError turns API failures into a message the payer can read.
func (g *Gateway) TranslateError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
		return "Mercado Pago está indisponível no momento. Tente novamente."
	}
	return "Não foi possível iniciar o pagamento com Mercado Pago."
}

func describeStatusDetail(detail string) string {
	if msg, ok := statusDetailMessages[detail]; ok {
		return msg
	}
	return "Pagamento recusado."
}

func errorCode(err error) string {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	return "provider_unavailable"
}

type notification struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ProcessWebhook verifies x-signature, then fetches the payment so status
// and amount come from the API rather than the notification body.
func (g *Gateway) ProcessWebhook(ctx context.Context, payload []byte, headers http.Header) (*provider.WebhookResult, error) {
	if g.cfg.WebhookSecret == "" {
		return nil, provider.MissingWebhookSecret(g.Name())
	}

	var note notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, domainerrors.InvalidSignature(string(g.Name()), fmt.Errorf("unreadable notification: %w", err))
	}
	if err := verifySignature(g.cfg.WebhookSecret, note.Data.ID, headers); err != nil {
		return nil, domainerrors.InvalidSignature(string(g.Name()), err)
	}

	if note.Type != notificationTopic || note.Data.ID == "" {
		g.logger.Debug("Ignoring notification", zap.String("type", note.Type), zap.String("action", note.Action))
		return &provider.WebhookResult{}, nil
	}

	p, err := g.api.getPayment(ctx, note.Data.ID)
	if err != nil {
		g.logger.Error("Failed to fetch notified payment", zap.String("mp_payment_id", note.Data.ID), zap.Error(err))
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}

	amount := decimal.NewFromFloat(p.TransactionAmount)
	event := entity.WebhookEvent{
		Provider:       string(g.Name()),
		EventID:        eventID(note, headers),
		EventType:      note.Action,
		ExternalID:     p.idString(),
		Reference:      p.ExternalReference,
		ProviderStatus: p.Status,
		Status:         g.MapStatus(p.Status),
		Amount:         &amount,
		ReceivedAt:     time.Now().UTC(),
	}
	if event.Status == entity.PaymentStatusRejected {
		event.ErrorCode = p.StatusDetail
		event.ErrorMessage = describeStatusDetail(p.StatusDetail)
		if p.ExternalReference != "" {
			// the preference stays open after a decline and the payer may
			// try again; it closes at checkout expiry
			event.Status = entity.PaymentStatusPending
		}
	}
	return &provider.WebhookResult{Events: []entity.WebhookEvent{event}}, nil
}

func eventID(note notification, headers http.Header) string {
	if id := note.ID.String(); id != "" {
		return id
	}
	return headers.Get(RequestIDHeader)
}
