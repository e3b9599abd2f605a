package provider

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
)

// Registry selects the gateway that serves a payment method. Gateways are
// tried in registration order.
type Registry struct {
	gateways map[ProviderType]Gateway
	order    []ProviderType
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[ProviderType]Gateway, len(gateways))}
	for _, g := range gateways {
		if g == nil {
			continue
		}
		if _, dup := r.gateways[g.Name()]; !dup {
			r.order = append(r.order, g.Name())
		}
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *Registry) ByName(name ProviderType) (Gateway, bool) {
	g, ok := r.gateways[name]
	return g, ok
}

func (r *Registry) Gateways() []Gateway {
	out := make([]Gateway, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.gateways[name])
	}
	return out
}

// ForMethod returns the first configured and enabled gateway declaring
// method, or an UnsupportedMethod error.
func (r *Registry) ForMethod(ctx context.Context, method entity.PaymentMethod) (Gateway, error) {
	for _, g := range r.Gateways() {
		if !supportsMethod(g, method) {
			continue
		}
		if g.IsConfigured() && g.IsEnabled(ctx) {
			return g, nil
		}
	}
	return nil, domainerrors.UnsupportedMethod(string(method))
}

// Availability describes one gateway for status endpoints.
type Availability struct {
	Provider   ProviderType           `json:"provider"`
	Methods    []entity.PaymentMethod `json:"methods"`
	Configured bool                   `json:"configured"`
	Enabled    bool                   `json:"enabled"`
	Available  bool                   `json:"available"`
	SavedCards bool                   `json:"saved_cards"`
}

func (r *Registry) Availability(ctx context.Context) []Availability {
	out := make([]Availability, 0, len(r.order))
	for _, g := range r.Gateways() {
		configured := g.IsConfigured()
		enabled := g.IsEnabled(ctx)
		_, vault := Vault(g)
		out = append(out, Availability{
			Provider:   g.Name(),
			Methods:    g.SupportedMethods(),
			Configured: configured,
			Enabled:    enabled,
			Available:  configured && enabled,
			SavedCards: vault,
		})
	}
	return out
}

// Vault is the capability query for saved-card support.
func Vault(g Gateway) (CardVault, bool) {
	if g == nil || !g.SupportsFeature(FeatureSavedCards) {
		return nil, false
	}
	v, ok := g.(CardVault)
	return v, ok
}

// AsRefunder is the capability query for API refunds.
func AsRefunder(g Gateway) (Refunder, bool) {
	if g == nil || !g.SupportsFeature(FeatureRefunds) {
		return nil, false
	}
	rf, ok := g.(Refunder)
	return rf, ok
}

// ValidateCreate checks the preconditions shared by every CreatePayment:
// the amount must equal the order total and the method must be one the
// gateway declares.
func ValidateCreate(g Gateway, order *entity.Order, amount decimal.Decimal, data *PaymentData) error {
	if order == nil {
		return domainerrors.Validation("order is required")
	}
	if data == nil {
		return domainerrors.Validation("payment data is required")
	}
	if !amount.Equal(order.Total) {
		return domainerrors.Validation("amount %s does not match order total %s", amount.StringFixed(2), order.Total.StringFixed(2))
	}
	if !supportsMethod(g, data.Method) {
		return domainerrors.Validation("%s does not support method %q", g.Name(), data.Method)
	}
	return nil
}

// SettingEnabled reads payments.<name>.enabled, falling back to def when the
// setting is missing or not a boolean.
func SettingEnabled(ctx context.Context, settings repository.SettingsReader, name ProviderType, def bool) bool {
	if settings == nil {
		return def
	}
	raw, ok := settings.GetSetting(ctx, "payments."+string(name)+".enabled")
	if !ok {
		return def
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return enabled
}

func supportsMethod(g Gateway, method entity.PaymentMethod) bool {
	for _, m := range g.SupportedMethods() {
		if m == method {
			return true
		}
	}
	return false
}
