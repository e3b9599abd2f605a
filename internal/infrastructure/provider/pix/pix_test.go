package pix

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/order-payments/pkg/emvqr"
	"go.uber.org/zap"
)

type staticSettings map[string]string

func (s staticSettings) GetSetting(_ context.Context, key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

func newTestGateway() *Gateway {
	g := NewGateway(config.PixConfig{
		Key:           "restaurante@example.com",
		MerchantName:  "Restaurante São João",
		MerchantCity:  "São Paulo",
		WebhookSecret: "pix-secret",
	}, 30*time.Minute, nil, zap.NewNop())
	g.now = func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) }
	return g
}

func testOrder(total string) *entity.Order {
	return &entity.Order{
		ID:         "order-1",
		CustomerID: "user-1",
		Total:      decimal.RequireFromString(total),
		Currency:   "BRL",
		Status:     entity.OrderStatusPendingPayment,
	}
}

func TestCreatePayment_BuildsValidBRCode(t *testing.T) {
	g := newTestGateway()
	amount := decimal.RequireFromString("30.00")

	result, err := g.CreatePayment(context.Background(), testOrder("30.00"), amount, &provider.PaymentData{Method: entity.PaymentMethodPix})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, entity.PaymentStatusPending, result.Status)
	assert.Len(t, result.ExternalID, txidLength)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC), *result.ExpiresAt)

	require.NoError(t, emvqr.Validate(result.QRPayload))
	decoded, err := emvqr.DecodePix(result.QRPayload)
	require.NoError(t, err)
	assert.True(t, decoded.Amount.Equal(amount))
	assert.Equal(t, result.ExternalID, decoded.TxID)
	assert.Equal(t, "RESTAURANTE SAO JOAO", decoded.MerchantName)
	assert.Contains(t, result.QRPayload, "540530.00")
}

func TestCreatePayment_RandomKeyAndUUIDOrder(t *testing.T) {
	g := NewGateway(config.PixConfig{
		Key:          "7d9f0335-8dcc-4054-9bf9-0dbd61d36906",
		MerchantCity: "São Paulo",
	}, 30*time.Minute, nil, zap.NewNop())
	order := testOrder("30.00")
	order.ID = "3f2b8c1e-5a4d-4e7b-9c0a-1d2e3f4a5b6c"
	order.Restaurant = &entity.Restaurant{ID: "r1", Name: "Cantina da Nonna", City: "São Paulo"}

	result, err := g.CreatePayment(context.Background(), order, decimal.RequireFromString("30.00"), &provider.PaymentData{
		Method:      entity.PaymentMethodPix,
		Description: "Cantina da Nonna order " + order.ID,
	})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, entity.PaymentStatusPending, result.Status)

	decoded, err := emvqr.DecodePix(result.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, "7d9f0335-8dcc-4054-9bf9-0dbd61d36906", decoded.Key)
	assert.Equal(t, "CANTINA DA NONNA", decoded.MerchantName)
	assert.True(t, strings.HasPrefix(decoded.Description, "Cantina da Nonna order"))
}

func TestCreatePayment_Validation(t *testing.T) {
	g := newTestGateway()

	_, err := g.CreatePayment(context.Background(), testOrder("30.00"), decimal.RequireFromString("29.99"), &provider.PaymentData{Method: entity.PaymentMethodPix})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = g.CreatePayment(context.Background(), testOrder("30.00"), decimal.RequireFromString("30.00"), &provider.PaymentData{Method: entity.PaymentMethodCard})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestIsEnabled_ReadsSetting(t *testing.T) {
	g := newTestGateway()
	assert.True(t, g.IsEnabled(context.Background()))

	g.settings = staticSettings{"payments.pix.enabled": "false"}
	assert.False(t, g.IsEnabled(context.Background()))
}

func TestProcessWebhook(t *testing.T) {
	g := newTestGateway()
	body := []byte(`{"pix":[{"endToEndId":"E1234","txid":"abc123","valor":"30.00","horario":"2026-01-02T12:05:00Z",
		"devolucoes":[{"id":"d1","rtrId":"D1","valor":"30.00","status":"DEVOLVIDO"},{"id":"d2","status":"EM_PROCESSAMENTO"}]}]}`)

	headers := http.Header{}
	headers.Set(SignatureHeader, "sha256="+crypto.SignHex("pix-secret", body))

	result, err := g.ProcessWebhook(context.Background(), body, headers)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	received := result.Events[0]
	assert.Equal(t, "abc123", received.ExternalID)
	assert.Equal(t, "E1234", received.EventID)
	assert.Equal(t, entity.PaymentStatusApproved, received.Status)
	require.NotNil(t, received.Amount)
	assert.True(t, received.Amount.Equal(decimal.RequireFromString("30")))

	assert.Equal(t, entity.PaymentStatusRefunded, result.Events[1].Status)
}

func TestProcessWebhook_RejectsTamperedBody(t *testing.T) {
	g := newTestGateway()
	body := []byte(`{"pix":[{"endToEndId":"E1","txid":"abc","valor":"30.00"}]}`)
	headers := http.Header{}
	headers.Set(SignatureHeader, crypto.SignHex("pix-secret", body))

	tampered := []byte(`{"pix":[{"endToEndId":"E1","txid":"abc","valor":"3.00"}]}`)
	_, err := g.ProcessWebhook(context.Background(), tampered, headers)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSignature)

	g.cfg.WebhookSecret = ""
	_, err = g.ProcessWebhook(context.Background(), body, headers)
	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.ErrCodeMissingSecret, perr.Code)
}

func TestMapStatus(t *testing.T) {
	g := newTestGateway()
	assert.Equal(t, entity.PaymentStatusApproved, g.MapStatus("CONCLUIDA"))
	assert.Equal(t, entity.PaymentStatusPending, g.MapStatus("ATIVA"))
	assert.Equal(t, entity.PaymentStatusExpired, g.MapStatus("REMOVIDA_PELO_PSP"))
	assert.Equal(t, entity.PaymentStatusRefunded, g.MapStatus("DEVOLVIDO"))
	assert.Equal(t, entity.PaymentStatus(""), g.MapStatus("UNKNOWN"))
}
