package provider

import (
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	cashProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/cash"
	mercadopagoProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/mercadopago"
	pixProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/pix"
	stripeProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"go.uber.org/zap"
)

// Factory builds every gateway once at startup from static config. Runtime
// enable flags are read per call through settings.
type Factory struct {
	config   *config.PaymentsConfig
	settings repository.SettingsReader
	logger   *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(config *config.PaymentsConfig, settings repository.SettingsReader, logger *zap.Logger) *Factory {
	return &Factory{
		config:   config,
		settings: settings,
		logger:   logger,
	}
}

// GetProvider returns a gateway by type. Unconfigured gateways are still
// returned; the registry skips them.
func (f *Factory) GetProvider(providerType provider.ProviderType) (provider.Gateway, error) {
	log := logger.ForProvider(f.logger, string(providerType))
	switch providerType {
	case provider.ProviderTypeStripe:
		return stripeProvider.NewGateway(f.config.Stripe, f.config.Currency, f.settings, log), nil
	case provider.ProviderTypeMercadoPago:
		return mercadopagoProvider.NewGateway(f.config.MercadoPago, *f.config, f.settings, log), nil
	case provider.ProviderTypePix:
		return pixProvider.NewGateway(f.config.Pix, f.config.QRExpiry, f.settings, log), nil
	case provider.ProviderTypeCash:
		return cashProvider.NewGateway(f.config.Cash, f.settings, log), nil
	default:
		return nil, provider.NotConfigured(providerType)
	}
}

// NewRegistry builds the registry in dispatch order: card, wallet, pix, cash.
func (f *Factory) NewRegistry() (*provider.Registry, error) {
	types := []provider.ProviderType{
		provider.ProviderTypeStripe,
		provider.ProviderTypeMercadoPago,
		provider.ProviderTypePix,
		provider.ProviderTypeCash,
	}

	gateways := make([]provider.Gateway, 0, len(types))
	for _, t := range types {
		g, err := f.GetProvider(t)
		if err != nil {
			return nil, err
		}
		if !g.IsConfigured() {
			f.logger.Warn("Payment gateway not configured", zap.String("provider", string(t)))
		}
		gateways = append(gateways, g)
	}
	return provider.NewRegistry(gateways...), nil
}
