package config

import "time"

// PaymentsConfig holds gateway credentials and engine timings. It is read
// once at startup and never mutated.
type PaymentsConfig struct {
	Currency        string        `yaml:"currency" validate:"omitempty,len=3"`
	Sandbox         bool          `yaml:"sandbox"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	QRExpiry        time.Duration `yaml:"qr_expiry"`
	ExpirySchedule  string        `yaml:"expiry_schedule"`
	HealthSchedule  string        `yaml:"health_schedule"`

	Stripe      StripeConfig      `yaml:"stripe"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	Pix         PixConfig         `yaml:"pix"`
	Cash        CashConfig        `yaml:"cash"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	// APIURL overrides the API host, used against stripe-mock.
	APIURL string `yaml:"api_url"`
}

type MercadoPagoConfig struct {
	AccessToken     string `yaml:"access_token"`
	WebhookSecret   string `yaml:"webhook_secret"`
	BaseURL         string `yaml:"base_url"`
	NotificationURL string `yaml:"notification_url"`
	SuccessURL      string `yaml:"success_url"`
	FailureURL      string `yaml:"failure_url"`
	PendingURL      string `yaml:"pending_url"`
	StatementName   string `yaml:"statement_name"`
	// CheckoutExpiry closes the preference; the payer may retry declined
	// attempts until then.
	CheckoutExpiry time.Duration `yaml:"checkout_expiry"`
}

type PixConfig struct {
	Key           string `yaml:"key"`
	MerchantName  string `yaml:"merchant_name" validate:"max=25"`
	MerchantCity  string `yaml:"merchant_city" validate:"max=15"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type CashConfig struct {
	// Expiry bounds how long a cash payment waits for manual confirmation.
	// Zero means no expiry.
	Expiry time.Duration `yaml:"expiry"`
}

func (c *PaymentsConfig) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "BRL"
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = 15 * time.Second
	}
	if c.QRExpiry == 0 {
		c.QRExpiry = 30 * time.Minute
	}
	if c.ExpirySchedule == "" {
		c.ExpirySchedule = "@every 1m"
	}
	if c.HealthSchedule == "" {
		c.HealthSchedule = "@every 30s"
	}
	if c.MercadoPago.CheckoutExpiry == 0 {
		c.MercadoPago.CheckoutExpiry = 2 * time.Hour
	}
	if c.MercadoPago.BaseURL == "" {
		c.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
}
