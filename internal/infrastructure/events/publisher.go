package events

import (
	"context"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/pkg/messaging"
	"go.uber.org/zap"
)

// RedisPublisher announces applied payment transitions on a pub/sub channel
// the order domain listens to.
type RedisPublisher struct {
	client  messaging.RedisClient
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(client messaging.RedisClient, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event entity.PaymentEvent) error {
	if err := p.client.Publish(ctx, p.channel, event); err != nil {
		p.logger.Error("Failed to publish payment event",
			zap.String("payment_id", event.PaymentID),
			zap.String("to", string(event.To)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// LogPublisher only logs events. Used when Redis is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event entity.PaymentEvent) error {
	p.logger.Info("Payment event",
		zap.String("payment_id", event.PaymentID),
		zap.String("order_id", event.OrderID),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("source", event.Source),
	)
	return nil
}
