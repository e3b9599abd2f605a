package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/adapter/repository"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"go.uber.org/zap"
)

func TestWebhookEventRepository_RecordAndRedeliver(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewWebhookEventRepository(db, zap.NewNop())
	ctx := context.Background()

	amount := decimal.RequireFromString("30.00")
	event := entity.WebhookEvent{
		Provider:       "pix",
		EventID:        "E2E0001",
		EventType:      "pix.received",
		ExternalID:     "txid-1",
		ProviderStatus: "CONCLUIDA",
		Status:         entity.PaymentStatusApproved,
		Amount:         &amount,
		ReceivedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, repo.Record(ctx, event, "failed", errors.New("payment not found")))

	rec, err := repo.Get(ctx, "pix", "E2E0001")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "failed", rec.Outcome)
	assert.Equal(t, "payment not found", rec.LastError)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, entity.PaymentStatusApproved, rec.Status)
	assert.True(t, amount.Equal(*rec.Amount))

	require.NoError(t, repo.Record(ctx, event, "applied", nil))

	rec, err = repo.Get(ctx, "pix", "E2E0001")
	require.NoError(t, err)
	assert.Equal(t, "applied", rec.Outcome)
	assert.Empty(t, rec.LastError)
	assert.Equal(t, 2, rec.Attempts)

	var count int64
	require.NoError(t, db.Table("payment_webhook_events").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookEventRepository_SameIDOtherProvider(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewWebhookEventRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, entity.WebhookEvent{Provider: "stripe", EventID: "evt_1", EventType: "payment_intent.succeeded"}, "applied", nil))
	require.NoError(t, repo.Record(ctx, entity.WebhookEvent{Provider: "mercadopago", EventID: "evt_1", EventType: "payment"}, "ignored", nil))

	stripeRec, err := repo.Get(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "applied", stripeRec.Outcome)

	missing, err := repo.Get(ctx, "pix", "evt_1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
