package usecase

import (
	"context"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

// EventPublisher announces applied transitions to the order domain.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.PaymentEvent) error
}

// WebhookDedup remembers verified webhook event ids.
type WebhookDedup interface {
	// Remember reports whether key is new.
	Remember(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// WebhookJournal keeps an audit row per verified webhook event.
type WebhookJournal interface {
	Record(ctx context.Context, event entity.WebhookEvent, outcome string, cause error) error
}

// PaymentMetrics records engine counters.
type PaymentMetrics interface {
	PaymentCreated(provider, method, status string)
	TransitionApplied(provider, from, to, source string)
	WebhookHandled(provider, outcome string)
	ProviderCall(provider, operation string, took time.Duration)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, entity.PaymentEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) PaymentCreated(string, string, string)            {}
func (nopMetrics) TransitionApplied(string, string, string, string) {}
func (nopMetrics) WebhookHandled(string, string)                    {}
func (nopMetrics) ProviderCall(string, string, time.Duration)       {}
