package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/model"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates the webhook journal
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookEventRepository) Record(ctx context.Context, event entity.WebhookEvent, outcome string, cause error) error {
	row := &model.WebhookEvent{
		Provider:       event.Provider,
		EventID:        event.EventID,
		EventType:      event.EventType,
		ExternalID:     event.ExternalID,
		Reference:      nullable(event.Reference),
		ProviderStatus: event.ProviderStatus,
		Status:         nullable(string(event.Status)),
		Amount:         event.Amount,
		Outcome:        outcome,
		Attempts:       1,
		ReceivedAt:     event.ReceivedAt,
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	var lastError *string
	if cause != nil {
		msg := cause.Error()
		lastError = &msg
		row.LastError = lastError
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"outcome":    outcome,
				"last_error": lastError,
				"attempts":   gorm.Expr("payment_webhook_events.attempts + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(row).Error
	if err != nil {
		r.logger.Error("Failed to journal webhook event",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return fmt.Errorf("failed to journal webhook event: %w", err)
	}
	return nil
}

func (r *webhookEventRepository) Get(ctx context.Context, provider, eventID string) (*entity.WebhookEventRecord, error) {
	var m model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	rec := &entity.WebhookEventRecord{
		WebhookEvent: entity.WebhookEvent{
			Provider:       m.Provider,
			EventID:        m.EventID,
			EventType:      m.EventType,
			ExternalID:     m.ExternalID,
			Reference:      deref(m.Reference),
			ProviderStatus: m.ProviderStatus,
			Status:         entity.PaymentStatus(deref(m.Status)),
			Amount:         m.Amount,
			ReceivedAt:     m.ReceivedAt,
		},
		Outcome:   m.Outcome,
		LastError: deref(m.LastError),
		Attempts:  m.Attempts,
		UpdatedAt: m.UpdatedAt,
	}
	return rec, nil
}
