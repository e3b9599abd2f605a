package cash

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

// Gateway records cash on delivery. It never talks to a provider; an
// operator confirms the payment once the money is collected.
type Gateway struct {
	cfg      config.CashConfig
	settings repository.SettingsReader
	logger   *zap.Logger
	now      func() time.Time
}

func NewGateway(cfg config.CashConfig, settings repository.SettingsReader, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) Name() provider.ProviderType {
	return provider.ProviderTypeCash
}

func (g *Gateway) IsConfigured() bool {
	return true
}

// IsEnabled is off unless payments.cash.enabled is set to true.
func (g *Gateway) IsEnabled(ctx context.Context) bool {
	return provider.SettingEnabled(ctx, g.settings, g.Name(), false)
}

func (g *Gateway) SupportedMethods() []entity.PaymentMethod {
	return []entity.PaymentMethod{entity.PaymentMethodCash}
}

func (g *Gateway) SupportsFeature(feature provider.Feature) bool {
	switch feature {
	case provider.FeatureManualConfirmation:
		return true
	case provider.FeatureExpiry:
		return g.cfg.Expiry > 0
	}
	return false
}

func (g *Gateway) CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	if err := provider.ValidateCreate(g, order, amount, data); err != nil {
		return nil, err
	}

	result := &provider.PaymentResult{
		Success: true,
		Status:  entity.PaymentStatusPending,
	}
	if g.cfg.Expiry > 0 {
		expiresAt := g.now().Add(g.cfg.Expiry)
		result.ExpiresAt = &expiresAt
	}

	g.logger.Info("Cash payment registered", zap.String("order_id", order.ID))
	return result, nil
}

// ProcessWebhook is never routed for cash; there is no remote party.
func (g *Gateway) ProcessWebhook(ctx context.Context, payload []byte, headers http.Header) (*provider.WebhookResult, error) {
	return nil, &provider.ProviderError{Code: "webhook_unsupported", Message: "cash payments have no webhooks"}
}

func (g *Gateway) MapStatus(providerStatus string) entity.PaymentStatus {
	status := entity.PaymentStatus(providerStatus)
	if status.IsValid() {
		return status
	}
	return ""
}

func (g *Gateway) TranslateError(err error) string {
	if err == nil {
		return ""
	}
	return "Não foi possível registrar o pagamento em dinheiro."
}
