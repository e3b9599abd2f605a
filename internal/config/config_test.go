package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("STRIPE_SECRET", "sk_test_123")
	path := writeConfig(t, `
payments:
  sandbox: true
  provider_timeout: 5s
  stripe:
    secret_key: ${STRIPE_SECRET}
  pix:
    key: pagamentos@loja.com.br
    merchant_name: LOJA
    merchant_city: SAO PAULO
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Payments.Stripe.SecretKey)
	assert.Equal(t, 5*time.Second, cfg.Payments.ProviderTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Payments.QRExpiry)
	assert.Equal(t, "BRL", cfg.Payments.Currency)
	assert.Equal(t, "https://api.mercadopago.com", cfg.Payments.MercadoPago.BaseURL)
	assert.Equal(t, "payments.events", cfg.Redis.EventsChannel)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.True(t, cfg.Payments.Sandbox)
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "payments:\n  pix:\n    merchant_city: A CITY NAME LONGER THAN FIFTEEN\n"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "redis:\n  enabled: true\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "payments"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=payments sslmode=disable", c.DSN())
}
