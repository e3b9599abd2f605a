package repository

import (
	"context"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

// WebhookEventRepository journals verified webhook events. It is an audit
// trail, not a dedup mechanism.
type WebhookEventRepository interface {
	// Record upserts by (provider, event id); a redelivery bumps Attempts.
	Record(ctx context.Context, event entity.WebhookEvent, outcome string, cause error) error
	Get(ctx context.Context, provider, eventID string) (*entity.WebhookEventRecord, error)
}
