package cash

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"go.uber.org/zap"
)

type staticSettings map[string]string

func (s staticSettings) GetSetting(_ context.Context, key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

func TestIsEnabled_DefaultsOff(t *testing.T) {
	g := NewGateway(config.CashConfig{}, staticSettings{}, zap.NewNop())
	assert.False(t, g.IsEnabled(context.Background()))

	g = NewGateway(config.CashConfig{}, staticSettings{"payments.cash.enabled": "true"}, zap.NewNop())
	assert.True(t, g.IsEnabled(context.Background()))
}

func TestCreatePayment(t *testing.T) {
	g := NewGateway(config.CashConfig{Expiry: 2 * time.Hour}, nil, zap.NewNop())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	order := &entity.Order{ID: "o1", Total: decimal.RequireFromString("55.00")}
	result, err := g.CreatePayment(context.Background(), order, decimal.RequireFromString("55"), &provider.PaymentData{Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, entity.PaymentStatusPending, result.Status)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, now.Add(2*time.Hour), *result.ExpiresAt)
	assert.True(t, g.SupportsFeature(provider.FeatureExpiry))
	assert.True(t, g.SupportsFeature(provider.FeatureManualConfirmation))
	assert.False(t, g.SupportsFeature(provider.FeatureRefunds))
}
