package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

// Webhook outcomes as counted by metrics.
const (
	outcomeApplied          = "applied"
	outcomeIgnored          = "ignored"
	outcomeDuplicate        = "duplicate"
	outcomeInvalidSignature = "invalid_signature"
	outcomeFailed           = "failed"
)

// WebhookReport summarizes one delivery.
type WebhookReport struct {
	Events    int `json:"events"`
	Applied   int `json:"applied"`
	Duplicate int `json:"duplicate"`
}

// WebhookService reconciles provider notifications with stored payments.
type WebhookService struct {
	payments    repository.PaymentRepository
	registry    *provider.Registry
	transitions *Transitioner
	dedup       WebhookDedup
	journal     WebhookJournal
	metrics     PaymentMetrics
	logger      *zap.Logger
}

func NewWebhookService(
	payments repository.PaymentRepository,
	registry *provider.Registry,
	transitions *Transitioner,
	dedup WebhookDedup,
	journal WebhookJournal,
	metrics PaymentMetrics,
	logger *zap.Logger,
) *WebhookService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &WebhookService{
		payments:    payments,
		registry:    registry,
		transitions: transitions,
		dedup:       dedup,
		journal:     journal,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleWebhook verifies a delivery and applies its events. Nothing is
// written unless the signature checks out. Replays and stale events
// succeed without changes.
func (s *WebhookService) HandleWebhook(ctx context.Context, providerName string, payload []byte, headers http.Header) (*WebhookReport, error) {
	gateway, ok := s.registry.ByName(provider.ProviderType(providerName))
	if !ok {
		return nil, domainerrors.Validation("unknown payment provider %q", providerName)
	}

	result, err := gateway.ProcessWebhook(ctx, payload, headers)
	if err != nil {
		return nil, s.verifyFailed(providerName, err)
	}

	report := &WebhookReport{Events: len(result.Events)}
	for _, event := range result.Events {
		key := providerName + ":" + event.EventID
		if event.EventID != "" && s.dedup != nil {
			first, err := s.dedup.Remember(ctx, key)
			if err != nil {
				s.logger.Warn("Webhook dedup unavailable", zap.String("provider", providerName), zap.Error(err))
			} else if !first {
				report.Duplicate++
				s.metrics.WebhookHandled(providerName, outcomeDuplicate)
				continue
			}
		}

		applied, err := s.reconcile(ctx, event)
		if err != nil {
			if event.EventID != "" && s.dedup != nil {
				// let the provider's redelivery through
				if ferr := s.dedup.Forget(ctx, key); ferr != nil {
					s.logger.Warn("Failed to release webhook dedup key", zap.String("key", key), zap.Error(ferr))
				}
			}
			s.metrics.WebhookHandled(providerName, outcomeFailed)
			s.record(ctx, event, outcomeFailed, err)
			return report, err
		}
		outcome := outcomeIgnored
		if applied {
			report.Applied++
			outcome = outcomeApplied
		}
		s.metrics.WebhookHandled(providerName, outcome)
		s.record(ctx, event, outcome, nil)
	}
	return report, nil
}

// record journals event. Journal failures never fail the delivery.
func (s *WebhookService) record(ctx context.Context, event entity.WebhookEvent, outcome string, cause error) {
	if s.journal == nil || event.EventID == "" {
		return
	}
	if err := s.journal.Record(ctx, event, outcome, cause); err != nil {
		s.logger.Warn("Webhook event not journaled",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (s *WebhookService) verifyFailed(providerName string, err error) error {
	var perr *provider.ProviderError
	switch {
	case errors.Is(err, domainerrors.ErrInvalidSignature):
		s.logger.Warn("Webhook signature rejected", zap.String("provider", providerName), zap.Error(err))
		s.metrics.WebhookHandled(providerName, outcomeInvalidSignature)
		return err
	case errors.As(err, &perr) && perr.Code == provider.ErrCodeMissingSecret:
		s.logger.Error("Webhook received but no secret configured", zap.String("provider", providerName))
		s.metrics.WebhookHandled(providerName, outcomeInvalidSignature)
		return domainerrors.InvalidSignature(providerName, err)
	case errors.As(err, &perr) && perr.Code == provider.ErrCodeMalformedNotice:
		s.metrics.WebhookHandled(providerName, outcomeFailed)
		return domainerrors.Validation("malformed %s webhook", providerName)
	}
	s.logger.Error("Webhook processing failed", zap.String("provider", providerName), zap.Error(err))
	s.metrics.WebhookHandled(providerName, outcomeFailed)
	if errors.Is(err, domainerrors.ErrProviderError) {
		return err
	}
	return domainerrors.ProviderFailure(providerName, err)
}

// reconcile applies one verified event. It reports whether the payment
// changed.
func (s *WebhookService) reconcile(ctx context.Context, event entity.WebhookEvent) (bool, error) {
	payment, err := s.locate(ctx, event)
	if err != nil {
		return false, err
	}
	if event.Status == "" {
		s.logger.Debug("Ignoring unmapped provider status",
			zap.String("provider", event.Provider),
			zap.String("provider_status", event.ProviderStatus),
			zap.String("payment_id", payment.ID))
		return false, nil
	}
	if event.Amount != nil && event.Status == entity.PaymentStatusApproved && !event.Amount.Equal(payment.Amount) {
		s.logger.Error("Webhook amount does not match payment",
			zap.String("payment_id", payment.ID),
			zap.String("expected", payment.Amount.StringFixed(2)),
			zap.String("received", event.Amount.StringFixed(2)))
		return false, domainerrors.InvariantViolation(payment.ID, string(payment.Status), string(event.Status))
	}

	var replaces string
	if event.ExternalID != "" && payment.ExternalID != event.ExternalID {
		var proceed bool
		payment, replaces, proceed, err = s.bindAttempt(ctx, payment, event)
		if err != nil || !proceed {
			return false, err
		}
	}

	update := entity.StatusUpdate{
		Status:             event.Status,
		ExternalID:         event.ExternalID,
		ErrorCode:          event.ErrorCode,
		ErrorMessage:       event.ErrorMessage,
		ReplacesExternalID: replaces,
	}
	if !event.ReceivedAt.IsZero() {
		at := event.ReceivedAt
		switch event.Status {
		case entity.PaymentStatusApproved:
			update.ApprovedAt = &at
		case entity.PaymentStatusRefunded:
			update.RefundedAt = &at
		}
	}

	current, applied, err := s.transitions.Apply(ctx, payment, update, SourceWebhook)
	if err != nil {
		return false, err
	}
	if replaces != "" && !applied && current.Status.IsActive() && current.ExternalID != event.ExternalID {
		// the bound attempt changed under us; let the provider redeliver
		return false, fmt.Errorf("payment %s changed while binding provider id %s", payment.ID, event.ExternalID)
	}
	return applied, nil
}

// locate finds the payment by provider id, then by the reference the
// provider echoed back.
func (s *WebhookService) locate(ctx context.Context, event entity.WebhookEvent) (*entity.Payment, error) {
	payment, err := s.payments.GetByExternalID(ctx, event.Provider, event.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment by external id: %w", err)
	}
	if payment != nil {
		return payment, nil
	}

	if event.Reference != "" {
		payment, err = s.payments.GetByID(ctx, event.Reference)
		if err != nil {
			return nil, fmt.Errorf("failed to look up payment by reference: %w", err)
		}
		if payment != nil && payment.Provider != event.Provider {
			payment = nil
		}
	}
	if payment == nil {
		s.logger.Warn("Webhook for unknown payment",
			zap.String("provider", event.Provider),
			zap.String("external_id", event.ExternalID),
			zap.String("reference", event.Reference))
		return nil, domainerrors.PaymentNotFound(event.Provider + "/" + event.ExternalID)
	}

	return payment, nil
}

// bindAttempt ties the provider attempt behind event to payment. Hosted
// checkouts let the payer retry, and each retry carries a new provider id.
// A newer attempt replaces the bound one only while the payment is open and
// the event moves it forward; replaces names the id the status write must
// swap out. An approval from any other attempt once the payment has settled
// is an error so it gets reconciled by hand.
func (s *WebhookService) bindAttempt(ctx context.Context, payment *entity.Payment, event entity.WebhookEvent) (_ *entity.Payment, replaces string, proceed bool, err error) {
	if payment.ExternalID == "" {
		bound, err := s.payments.BindExternalID(ctx, payment.ID, event.ExternalID)
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to bind external id: %w", err)
		}
		if bound {
			payment.ExternalID = event.ExternalID
			return payment, "", true, nil
		}
		if payment, err = s.reloadPayment(ctx, payment.ID); err != nil {
			return nil, "", false, err
		}
		if payment.ExternalID == event.ExternalID {
			return payment, "", true, nil
		}
	}

	switch {
	case payment.Status.IsActive() && decide(payment.Status, event.Status) == decisionApply:
		s.logger.Info("Payment moving to a new provider attempt",
			zap.String("payment_id", payment.ID),
			zap.String("previous_external_id", payment.ExternalID),
			zap.String("external_id", event.ExternalID))
		return payment, payment.ExternalID, true, nil
	case event.Status == entity.PaymentStatusApproved:
		s.logger.Error("Approved provider attempt does not match payment",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(payment.Status)),
			zap.String("bound_external_id", payment.ExternalID),
			zap.String("external_id", event.ExternalID))
		return nil, "", false, domainerrors.AttemptMismatch(payment.ID, payment.ExternalID, event.ExternalID)
	}

	s.logger.Debug("Ignoring event for superseded provider attempt",
		zap.String("payment_id", payment.ID),
		zap.String("external_id", event.ExternalID),
		zap.String("status", string(event.Status)))
	return payment, "", false, nil
}

func (s *WebhookService) reloadPayment(ctx context.Context, id string) (*entity.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment %s: %w", id, err)
	}
	if payment == nil {
		return nil, domainerrors.PaymentNotFound(id)
	}
	return payment, nil
}
