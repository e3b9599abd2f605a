package pix

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/order-payments/pkg/emvqr"
	"go.uber.org/zap"
)

// SignatureHeader carries the PSP's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Pix-Signature"

const (
	txidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	txidLength   = 25
)

// PSP charge statuses
const (
	StatusActive        = "ATIVA"
	StatusCompleted     = "CONCLUIDA"
	StatusRemovedByUser = "REMOVIDA_PELO_USUARIO_RECEBEDOR"
	StatusRemovedByPSP  = "REMOVIDA_PELO_PSP"
	StatusReturned      = "DEVOLVIDO"
)

// Gateway issues BR Code payloads locally. Funds are confirmed by the PSP
// webhook or by an operator; there is no synchronous approval.
type Gateway struct {
	cfg      config.PixConfig
	expiry   time.Duration
	settings repository.SettingsReader
	logger   *zap.Logger
	now      func() time.Time
}

func NewGateway(cfg config.PixConfig, expiry time.Duration, settings repository.SettingsReader, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		expiry:   expiry,
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) Name() provider.ProviderType {
	return provider.ProviderTypePix
}

func (g *Gateway) IsConfigured() bool {
	return g.cfg.Key != ""
}

func (g *Gateway) IsEnabled(ctx context.Context) bool {
	return provider.SettingEnabled(ctx, g.settings, g.Name(), true)
}

func (g *Gateway) SupportedMethods() []entity.PaymentMethod {
	return []entity.PaymentMethod{entity.PaymentMethodPix}
}

func (g *Gateway) SupportsFeature(feature provider.Feature) bool {
	switch feature {
	case provider.FeatureQRCode, provider.FeatureManualConfirmation, provider.FeatureExpiry:
		return true
	}
	return false
}

func (g *Gateway) CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	if err := provider.ValidateCreate(g, order, amount, data); err != nil {
		return nil, err
	}
	if !g.IsConfigured() {
		return nil, provider.NotConfigured(g.Name())
	}

	txid, err := gonanoid.Generate(txidAlphabet, txidLength)
	if err != nil {
		g.logger.Error("Failed to generate pix txid", zap.Error(err))
		return provider.Rejected("txid_generation_failed", g.TranslateError(err)), nil
	}

	merchantName, merchantCity := g.cfg.MerchantName, g.cfg.MerchantCity
	if order.Restaurant != nil {
		if merchantName == "" {
			merchantName = order.Restaurant.Name
		}
		if merchantCity == "" {
			merchantCity = order.Restaurant.City
		}
	}

	payload, err := emvqr.BuildPix(emvqr.Pix{
		Key:          g.cfg.Key,
		Description:  data.Description,
		MerchantName: merchantName,
		MerchantCity: merchantCity,
		Amount:       amount,
		TxID:         txid,
	})
	if err != nil {
		g.logger.Error("Failed to build pix payload",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return provider.Rejected("qr_build_failed", g.TranslateError(err)), nil
	}

	expiresAt := g.now().Add(g.expiry)
	g.logger.Info("Pix charge issued",
		zap.String("order_id", order.ID),
		zap.String("txid", txid),
		zap.Time("expires_at", expiresAt),
	)

	return &provider.PaymentResult{
		Success:    true,
		Status:     entity.PaymentStatusPending,
		ExternalID: txid,
		QRPayload:  payload,
		ExpiresAt:  &expiresAt,
	}, nil
}

type webhookPayload struct {
	Pix []pixEntry `json:"pix"`
}

type pixEntry struct {
	EndToEndID  string      `json:"endToEndId"`
	TxID        string      `json:"txid"`
	Valor       string      `json:"valor"`
	Horario     string      `json:"horario"`
	InfoPagador string      `json:"infoPagador,omitempty"`
	Devolucoes  []devolucao `json:"devolucoes,omitempty"`
}

type devolucao struct {
	ID     string `json:"id"`
	RtrID  string `json:"rtrId"`
	Valor  string `json:"valor"`
	Status string `json:"status"`
}

// ProcessWebhook verifies X-Pix-Signature and turns every received Pix into
// an event keyed by txid. Returned funds ("devolucoes") become refund events.
func (g *Gateway) ProcessWebhook(ctx context.Context, payload []byte, headers http.Header) (*provider.WebhookResult, error) {
	if g.cfg.WebhookSecret == "" {
		return nil, provider.MissingWebhookSecret(g.Name())
	}
	if err := crypto.VerifyHex(g.cfg.WebhookSecret, payload, headers.Get(SignatureHeader)); err != nil {
		return nil, domainerrors.InvalidSignature(string(g.Name()), err)
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, &provider.ProviderError{Code: provider.ErrCodeMalformedNotice, Message: "invalid pix notification", Details: err.Error()}
	}

	result := &provider.WebhookResult{}
	received := g.now()
	for _, entry := range body.Pix {
		if entry.TxID == "" {
			g.logger.Debug("Skipping pix without txid", zap.String("end_to_end_id", entry.EndToEndID))
			continue
		}

		event := entity.WebhookEvent{
			Provider:       string(g.Name()),
			EventID:        entry.EndToEndID,
			EventType:      "pix.received",
			ExternalID:     entry.TxID,
			ProviderStatus: StatusCompleted,
			Status:         g.MapStatus(StatusCompleted),
			ReceivedAt:     received,
		}
		if entry.Valor != "" {
			amount, err := decimal.NewFromString(entry.Valor)
			if err != nil {
				return nil, &provider.ProviderError{Code: provider.ErrCodeMalformedNotice, Message: "invalid pix amount", Details: entry.Valor}
			}
			event.Amount = &amount
		}
		result.Events = append(result.Events, event)

		for _, d := range entry.Devolucoes {
			if d.Status != StatusReturned {
				continue
			}
			result.Events = append(result.Events, entity.WebhookEvent{
				Provider:       string(g.Name()),
				EventID:        entry.EndToEndID + ":" + d.ID,
				EventType:      "pix.returned",
				ExternalID:     entry.TxID,
				ProviderStatus: d.Status,
				Status:         g.MapStatus(d.Status),
				ReceivedAt:     received,
			})
		}
	}
	return result, nil
}

func (g *Gateway) MapStatus(providerStatus string) entity.PaymentStatus {
	switch strings.ToUpper(providerStatus) {
	case StatusCompleted:
		return entity.PaymentStatusApproved
	case StatusActive:
		return entity.PaymentStatusPending
	case StatusRemovedByUser, StatusRemovedByPSP:
		return entity.PaymentStatusExpired
	case StatusReturned:
		return entity.PaymentStatusRefunded
	}
	return ""
}

func (g *Gateway) TranslateError(err error) string {
	if err == nil {
		return ""
	}
	return "Não foi possível gerar o QR Code Pix. Tente novamente."
}
