package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

const (
	metadataPaymentID    = "payment_id"
	metadataConfirmation = "confirmation"
	// server-confirmed intents are settled by their first decline
	confirmationServer = "server"
)

// Gateway charges cards through PaymentIntents. It owns its own API client;
// the package-level stripe.Key is never set.
type Gateway struct {
	cfg      config.StripeConfig
	currency string
	sc       *client.API
	settings repository.SettingsReader
	logger   *zap.Logger
}

func NewGateway(cfg config.StripeConfig, currency string, settings repository.SettingsReader, logger *zap.Logger) *Gateway {
	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &Gateway{
		cfg:      cfg,
		currency: currency,
		sc:       client.New(cfg.SecretKey, backends),
		settings: settings,
		logger:   logger,
	}
}

func (g *Gateway) Name() provider.ProviderType {
	return provider.ProviderTypeStripe
}

func (g *Gateway) IsConfigured() bool {
	return g.cfg.SecretKey != ""
}

func (g *Gateway) IsEnabled(ctx context.Context) bool {
	return provider.SettingEnabled(ctx, g.settings, g.Name(), true)
}

func (g *Gateway) SupportedMethods() []entity.PaymentMethod {
	return []entity.PaymentMethod{entity.PaymentMethodCard}
}

func (g *Gateway) SupportsFeature(feature provider.Feature) bool {
	switch feature {
	case provider.FeatureSavedCards, provider.FeatureRefunds, provider.FeatureClientConfirmation:
		return true
	}
	return false
}

// CreatePayment confirms a PaymentIntent with the given card token. With a
// saved card it charges through the vault; with neither it only creates the
// intent and hands the client secret back for client-side confirmation.
func (g *Gateway) CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	if err := provider.ValidateCreate(g, order, amount, data); err != nil {
		return nil, err
	}
	if !g.IsConfigured() {
		return nil, provider.NotConfigured(g.Name())
	}

	if data.SavedCardID != "" {
		if data.CustomerID == "" {
			return nil, domainerrors.Validation("saved card requires a vault customer")
		}
		return g.ChargeWithSavedCard(ctx, data.CustomerID, data.SavedCardID, order, amount, data)
	}

	params := g.intentParams(ctx, order, amount, data)
	if data.CardToken != "" {
		params.PaymentMethod = stripe.String(data.CardToken)
		params.Confirm = stripe.Bool(true)
		params.AddMetadata(metadataConfirmation, confirmationServer)
	}
	return g.createIntent(params, order)
}

func (g *Gateway) intentParams(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) *stripe.PaymentIntentParams {
	currency := data.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(amount)),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if data.Description != "" {
		params.Description = stripe.String(data.Description)
	}
	if data.PayerEmail != "" {
		params.ReceiptEmail = stripe.String(data.PayerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID)
	if data.PaymentID != "" {
		params.AddMetadata(metadataPaymentID, data.PaymentID)
		// a retried request for the same payment row must not charge twice
		params.SetIdempotencyKey("payment-" + data.PaymentID)
	}
	return params
}

func (g *Gateway) createIntent(params *stripe.PaymentIntentParams, order *entity.Order) (*provider.PaymentResult, error) {
	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return g.declined(err, order), nil
	}

	result := g.intentResult(pi)
	g.logger.Info("PaymentIntent created",
		zap.String("order_id", order.ID),
		zap.String("payment_intent", pi.ID),
		zap.String("intent_status", string(pi.Status)),
	)
	return result, nil
}

func (g *Gateway) intentResult(pi *stripe.PaymentIntent) *provider.PaymentResult {
	status := g.MapStatus(string(pi.Status))
	result := &provider.PaymentResult{
		Success:    status != entity.PaymentStatusRejected && status != entity.PaymentStatusExpired,
		Status:     status,
		ExternalID: pi.ID,
		Raw:        map[string]interface{}{"intent_status": string(pi.Status)},
	}
	if pi.LatestCharge != nil {
		result.ProviderReference = pi.LatestCharge.ID
	}
	if status == entity.PaymentStatusPending {
		result.ClientSecret = pi.ClientSecret
	}
	if pi.LastPaymentError != nil && status != entity.PaymentStatusApproved {
		result.ErrorCode = errorCode(pi.LastPaymentError)
		result.Error = g.TranslateError(pi.LastPaymentError)
	}
	return result
}

// declined turns an API error into a rejected result. Card errors carry the
// intent they failed on, so its id is kept for reconciliation.
func (g *Gateway) declined(err error, order *entity.Order) *provider.PaymentResult {
	result := provider.Rejected(errorCode(err), g.TranslateError(err))

	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.PaymentIntent != nil {
			result.ExternalID = serr.PaymentIntent.ID
		}
		g.logger.Warn("Card charge declined",
			zap.String("order_id", order.ID),
			zap.String("error_type", string(serr.Type)),
			zap.String("error_code", string(serr.Code)),
			zap.String("decline_code", string(serr.DeclineCode)),
		)
		return result
	}

	g.logger.Error("Stripe request failed", zap.String("order_id", order.ID), zap.Error(err))
	return result
}

// Refund refunds the intent. A zero or full amount refunds everything.
func (g *Gateway) Refund(ctx context.Context, p *entity.Payment, amount decimal.Decimal) (*provider.RefundResult, error) {
	if p.ExternalID == "" {
		return nil, domainerrors.Validation("payment %s has no provider id to refund", p.ID)
	}

	params := &stripe.RefundParams{PaymentIntent: stripe.String(p.ExternalID)}
	if amount.IsPositive() && amount.LessThan(p.Amount) {
		params.Amount = stripe.Int64(toMinorUnits(amount))
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + p.ID)

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}
	return &provider.RefundResult{RefundID: r.ID, Status: entity.PaymentStatusRefunded}, nil
}

func (g *Gateway) MapStatus(providerStatus string) entity.PaymentStatus {
	switch stripe.PaymentIntentStatus(providerStatus) {
	case stripe.PaymentIntentStatusSucceeded:
		return entity.PaymentStatusApproved
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return entity.PaymentStatusProcessing
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return entity.PaymentStatusPending
	case stripe.PaymentIntentStatusCanceled:
		return entity.PaymentStatusExpired
	}
	return ""
}

var declineMessages = map[string]string{
	"insufficient_funds":     "Saldo insuficiente no cartão.",
	"expired_card":           "Cartão expirado.",
	"incorrect_cvc":          "Código de segurança incorreto.",
	"incorrect_number":       "Número do cartão incorreto.",
	"lost_card":              "Cartão recusado. Contate o emissor.",
	"stolen_card":            "Cartão recusado. Contate o emissor.",
	"processing_error":       "Erro ao processar o cartão. Tente novamente.",
	"card_velocity_exceeded": "Limite de tentativas do cartão excedido.",
	"generic_decline":        "Cartão recusado.",
	"card_declined":          "Cartão recusado.",
}

func (g *Gateway) TranslateError(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := declineMessages[errorCode(err)]; ok {
		return msg
	}
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
		return "Cartão recusado."
	}
	return "Não foi possível processar o pagamento com cartão."
}

// errorCode prefers the issuer decline code over the generic error code.
func errorCode(err error) string {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return "provider_unavailable"
	}
	if serr.DeclineCode != "" {
		return string(serr.DeclineCode)
	}
	if serr.Code != "" {
		return string(serr.Code)
	}
	return string(serr.Type)
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
