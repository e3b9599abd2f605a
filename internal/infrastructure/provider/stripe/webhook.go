package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"go.uber.org/zap"
)

const SignatureHeader = "Stripe-Signature"

// ProcessWebhook verifies Stripe-Signature and normalizes PaymentIntent and
// refund events. Other event types yield an empty result.
func (g *Gateway) ProcessWebhook(ctx context.Context, payload []byte, headers http.Header) (*provider.WebhookResult, error) {
	if g.cfg.WebhookSecret == "" {
		return nil, provider.MissingWebhookSecret(g.Name())
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		headers.Get(SignatureHeader),
		g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, domainerrors.InvalidSignature(string(g.Name()), err)
	}

	g.logger.Debug("Received Stripe event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	var ev *entity.WebhookEvent
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
		ev, err = g.intentEvent(event)
	case stripe.EventTypeChargeRefunded:
		ev, err = g.refundEvent(event)
	default:
		return &provider.WebhookResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return &provider.WebhookResult{}, nil
	}
	return &provider.WebhookResult{Events: []entity.WebhookEvent{*ev}}, nil
}

func (g *Gateway) intentEvent(event stripe.Event) (*entity.WebhookEvent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, malformed(err)
	}

	status := g.MapStatus(string(pi.Status))
	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		// The intent falls back to requires_payment_method after a decline.
		// Client-confirmed intents stay open for another card.
		status = entity.PaymentStatusPending
		if pi.Metadata[metadataConfirmation] == confirmationServer {
			status = entity.PaymentStatusRejected
		}
	}

	ev := &entity.WebhookEvent{
		Provider:       string(g.Name()),
		EventID:        event.ID,
		EventType:      string(event.Type),
		ExternalID:     pi.ID,
		Reference:      pi.Metadata[metadataPaymentID],
		ProviderStatus: string(pi.Status),
		Status:         status,
		ReceivedAt:     time.Now().UTC(),
	}
	if pi.Amount > 0 {
		amount := fromMinorUnits(pi.Amount)
		ev.Amount = &amount
	}
	if pi.LastPaymentError != nil && status != entity.PaymentStatusApproved {
		ev.ErrorCode = errorCode(pi.LastPaymentError)
		ev.ErrorMessage = g.TranslateError(pi.LastPaymentError)
	}
	return ev, nil
}

// refundEvent reports REFUNDED only once the charge is fully refunded.
func (g *Gateway) refundEvent(event stripe.Event) (*entity.WebhookEvent, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return nil, malformed(err)
	}
	if !ch.Refunded || ch.PaymentIntent == nil {
		return nil, nil
	}

	return &entity.WebhookEvent{
		Provider:       string(g.Name()),
		EventID:        event.ID,
		EventType:      string(event.Type),
		ExternalID:     ch.PaymentIntent.ID,
		Reference:      ch.Metadata[metadataPaymentID],
		ProviderStatus: "refunded",
		Status:         entity.PaymentStatusRefunded,
		ReceivedAt:     time.Now().UTC(),
	}, nil
}

func malformed(err error) error {
	return &provider.ProviderError{Code: provider.ErrCodeMalformedNotice, Message: "invalid stripe event payload", Details: err.Error()}
}
