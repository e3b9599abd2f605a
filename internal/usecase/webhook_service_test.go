package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/dedup"
	pixProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/pix"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

func pixNotification(txid, e2e, amount string) []byte {
	return []byte(fmt.Sprintf(`{"pix":[{"endToEndId":%q,"txid":%q,"valor":%q,"horario":"2026-01-10T12:00:00Z"}]}`, e2e, txid, amount))
}

func signedPix(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set(pixProvider.SignatureHeader, crypto.SignHex(pixWebhookKey, payload))
	return headers
}

func startPix(t *testing.T, h *harness, orderID string) *entity.Payment {
	t.Helper()
	h.seedOrder(t, orderID, "30.00")
	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: orderID,
		Method:  entity.PaymentMethodPix,
		Amount:  decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)
	require.NotEmpty(t, payment.ExternalID)
	return payment
}

func TestHandleWebhook_PixApprovalIsIdempotent(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	payment := startPix(t, h, "order-1")
	payload := pixNotification(payment.ExternalID, "E2E0001", "30.00")

	report, err := h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	approved := h.payment(t, payment.ID)
	assert.Equal(t, entity.PaymentStatusApproved, approved.Status)
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

	report, err = h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)
	assert.Zero(t, report.Applied)

	replayed := h.payment(t, payment.ID)
	assert.Equal(t, approved.UpdatedAt, replayed.UpdatedAt)
	assert.Len(t, h.events.all(), 1)
}

func TestHandleWebhook_DedupShortCircuitsRedelivery(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	payment := startPix(t, h, "order-1")

	registry := provider.NewRegistry(pixGateway())
	transitions := usecase.NewTransitioner(h.payments, h.orders, h.events, nil, zap.NewNop())
	webhooks := usecase.NewWebhookService(h.payments, registry, transitions, dedup.NewMemoryStore(time.Hour), nil, nil, zap.NewNop())

	payload := pixNotification(payment.ExternalID, "E2E0001", "30.00")
	first, err := webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Applied)

	second, err := webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Duplicate)
	assert.Zero(t, second.Applied)
}

func TestHandleWebhook_TamperedSignatureChangesNothing(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	payment := startPix(t, h, "order-1")

	signed := pixNotification(payment.ExternalID, "E2E0001", "30.00")
	headers := signedPix(signed)
	tampered := pixNotification(payment.ExternalID, "E2E0001", "3000.00")

	_, err := h.webhooks.HandleWebhook(context.Background(), "pix", tampered, headers)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSignature)

	_, err = h.webhooks.HandleWebhook(context.Background(), "pix", signed, http.Header{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSignature)

	assert.Equal(t, entity.PaymentStatusPending, h.payment(t, payment.ID).Status)
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))
}

func TestHandleWebhook_AmountMismatchIsRejected(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	payment := startPix(t, h, "order-1")

	payload := pixNotification(payment.ExternalID, "E2E0001", "0.01")
	_, err := h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	assert.ErrorIs(t, err, domainerrors.ErrInvariantViolation)
	assert.Equal(t, entity.PaymentStatusPending, h.payment(t, payment.ID).Status)
}

func TestHandleWebhook_UnknownPayment(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())

	payload := pixNotification("unknowntxid", "E2E0001", "30.00")
	_, err := h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)

	_, err = h.webhooks.HandleWebhook(context.Background(), "paypal", payload, http.Header{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

// scriptedWallet delivers whatever events the test queues.
func scriptedWallet(events *[]entity.WebhookEvent) *fakeGateway {
	return &fakeGateway{
		name:     provider.ProviderTypeMercadoPago,
		methods:  []entity.PaymentMethod{entity.PaymentMethodWallet},
		features: []provider.Feature{provider.FeatureRedirect},
		create: func(context.Context, *entity.Order, *provider.PaymentData) (*provider.PaymentResult, error) {
			return &provider.PaymentResult{Success: true, Status: entity.PaymentStatusPending, ProviderReference: "pref-1", RedirectURL: "https://mp.test/checkout"}, nil
		},
		webhook: func([]byte) (*provider.WebhookResult, error) {
			return &provider.WebhookResult{Events: *events}, nil
		},
	}
}

func walletEvent(paymentID string, status entity.PaymentStatus, eventID string) entity.WebhookEvent {
	return entity.WebhookEvent{
		Provider:   "mercadopago",
		EventID:    eventID,
		ExternalID: "mp-1001",
		Reference:  paymentID,
		Status:     status,
	}
}

func TestHandleWebhook_ReferenceBindsExternalID(t *testing.T) {
	var events []entity.WebhookEvent
	h := newHarness(t, config.PaymentsConfig{}, scriptedWallet(&events))
	h.seedOrder(t, "order-1", "80.00")

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodWallet, Amount: decimal.RequireFromString("80.00"),
	}, customerID)
	require.NoError(t, err)
	assert.Equal(t, "https://mp.test/checkout", payment.RedirectURL)
	assert.Empty(t, payment.ExternalID)

	events = []entity.WebhookEvent{walletEvent(payment.ID, entity.PaymentStatusProcessing, "n1")}
	_, err = h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
	require.NoError(t, err)

	bound := h.payment(t, payment.ID)
	assert.Equal(t, "mp-1001", bound.ExternalID)
	assert.Equal(t, entity.PaymentStatusProcessing, bound.Status)

	// later events match by external id alone
	approved := walletEvent("", entity.PaymentStatusApproved, "n2")
	events = []entity.WebhookEvent{approved}
	_, err = h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusApproved, h.payment(t, payment.ID).Status)
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))
}

func TestHandleWebhook_StatusMonotonicity(t *testing.T) {
	var events []entity.WebhookEvent
	h := newHarness(t, config.PaymentsConfig{}, scriptedWallet(&events))
	h.seedOrder(t, "order-1", "80.00")
	h.seedOrder(t, "order-2", "80.00")

	start := func(orderID string) *entity.Payment {
		p, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
			OrderID: orderID, Method: entity.PaymentMethodWallet, Amount: decimal.RequireFromString("80.00"),
		}, customerID)
		require.NoError(t, err)
		return p
	}
	deliver := func(e entity.WebhookEvent) error {
		events = []entity.WebhookEvent{e}
		_, err := h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
		return err
	}

	rejected := start("order-1")
	require.NoError(t, deliver(walletEvent(rejected.ID, entity.PaymentStatusRejected, "a1")))
	for _, late := range []entity.PaymentStatus{entity.PaymentStatusApproved, entity.PaymentStatusPending, entity.PaymentStatusRefunded} {
		assert.NoError(t, deliver(walletEvent(rejected.ID, late, "a-"+string(late))))
		assert.Equal(t, entity.PaymentStatusRejected, h.payment(t, rejected.ID).Status)
	}
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))

	approved := start("order-2")
	second := walletEvent(approved.ID, entity.PaymentStatusApproved, "b1")
	second.ExternalID = "mp-2002"
	require.NoError(t, deliver(second))

	stale := second
	stale.EventID, stale.Status = "b0", entity.PaymentStatusProcessing
	assert.NoError(t, deliver(stale))

	lateral := second
	lateral.EventID, lateral.Status = "b2", entity.PaymentStatusRejected
	assert.ErrorIs(t, deliver(lateral), domainerrors.ErrInvariantViolation)
	assert.Equal(t, entity.PaymentStatusApproved, h.payment(t, approved.ID).Status)

	refund := second
	refund.EventID, refund.Status = "b3", entity.PaymentStatusRefunded
	require.NoError(t, deliver(refund))
	assert.Equal(t, entity.PaymentStatusRefunded, h.payment(t, approved.ID).Status)
}

func TestHandleWebhook_ReferenceFromOtherProviderIsIgnored(t *testing.T) {
	var events []entity.WebhookEvent
	h := newHarness(t, config.PaymentsConfig{}, pixGateway(), scriptedWallet(&events))
	payment := startPix(t, h, "order-1")

	// a wallet notification cannot claim a pix payment
	events = []entity.WebhookEvent{walletEvent(payment.ID, entity.PaymentStatusApproved, "x1")}
	_, err := h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
	assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)
	assert.Equal(t, entity.PaymentStatusPending, h.payment(t, payment.ID).Status)
}

func TestHandleWebhook_JournalsEveryVerifiedEvent(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	payment := startPix(t, h, "order-1")

	payload := pixNotification(payment.ExternalID, "E2E0001", "30.00")
	_, err := h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)
	_, err = h.webhooks.HandleWebhook(context.Background(), "pix", payload, signedPix(payload))
	require.NoError(t, err)

	unknown := pixNotification("unknown-txid", "E2E0002", "30.00")
	_, err = h.webhooks.HandleWebhook(context.Background(), "pix", unknown, signedPix(unknown))
	require.Error(t, err)

	// rejected signatures are never journaled
	_, err = h.webhooks.HandleWebhook(context.Background(), "pix", payload, http.Header{})
	require.Error(t, err)

	assert.Equal(t, []journalEntry{
		{eventID: "E2E0001", outcome: "applied"},
		{eventID: "E2E0001", outcome: "ignored"},
		{eventID: "E2E0002", outcome: "failed", failed: true},
	}, h.journal.all())
}

func walletAttempt(paymentID, externalID string, status entity.PaymentStatus, eventID string) entity.WebhookEvent {
	ev := walletEvent(paymentID, status, eventID)
	ev.ExternalID = externalID
	return ev
}

func TestHandleWebhook_DeclineThenApproveOnSameCheckout(t *testing.T) {
	var events []entity.WebhookEvent
	h := newHarness(t, config.PaymentsConfig{}, scriptedWallet(&events))
	h.seedOrder(t, "order-1", "80.00")
	deliver := func(e entity.WebhookEvent) (*usecase.WebhookReport, error) {
		events = []entity.WebhookEvent{e}
		return h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
	}

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodWallet, Amount: decimal.RequireFromString("80.00"),
	}, customerID)
	require.NoError(t, err)

	declined := walletAttempt(payment.ID, "111", entity.PaymentStatusPending, "n1")
	declined.ProviderStatus, declined.ErrorCode = "rejected", "cc_rejected_insufficient_amount"
	_, err = deliver(declined)
	require.NoError(t, err)
	assert.Equal(t, "111", h.payment(t, payment.ID).ExternalID)

	report, err := deliver(walletAttempt(payment.ID, "222", entity.PaymentStatusApproved, "n2"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	approved := h.payment(t, payment.ID)
	assert.Equal(t, entity.PaymentStatusApproved, approved.Status)
	assert.Equal(t, "222", approved.ExternalID)
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

	// a late notice for the declined attempt changes nothing
	report, err = deliver(walletAttempt(payment.ID, "111", entity.PaymentStatusPending, "n3"))
	require.NoError(t, err)
	assert.Zero(t, report.Applied)
	assert.Equal(t, "222", h.payment(t, payment.ID).ExternalID)
}

func TestHandleWebhook_ApprovalFromOtherAttemptIsFlagged(t *testing.T) {
	var events []entity.WebhookEvent
	h := newHarness(t, config.PaymentsConfig{}, scriptedWallet(&events))
	deliver := func(e entity.WebhookEvent) error {
		events = []entity.WebhookEvent{e}
		_, err := h.webhooks.HandleWebhook(context.Background(), "mercadopago", nil, http.Header{})
		return err
	}
	start := func(orderID string) *entity.Payment {
		h.seedOrder(t, orderID, "80.00")
		p, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
			OrderID: orderID, Method: entity.PaymentMethodWallet, Amount: decimal.RequireFromString("80.00"),
		}, customerID)
		require.NoError(t, err)
		return p
	}

	rejected := start("order-1")
	require.NoError(t, deliver(walletAttempt(rejected.ID, "111", entity.PaymentStatusRejected, "r1")))
	err := deliver(walletAttempt(rejected.ID, "222", entity.PaymentStatusApproved, "r2"))
	assert.ErrorIs(t, err, domainerrors.ErrInvariantViolation)
	assert.Equal(t, entity.PaymentStatusRejected, h.payment(t, rejected.ID).Status)
	assert.Equal(t, "111", h.payment(t, rejected.ID).ExternalID)
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))

	paid := start("order-2")
	require.NoError(t, deliver(walletAttempt(paid.ID, "333", entity.PaymentStatusApproved, "p1")))
	err = deliver(walletAttempt(paid.ID, "444", entity.PaymentStatusApproved, "p2"))
	assert.ErrorIs(t, err, domainerrors.ErrInvariantViolation)
	assert.Equal(t, "333", h.payment(t, paid.ID).ExternalID)

	assert.Equal(t, []journalEntry{
		{eventID: "r1", outcome: "applied"},
		{eventID: "r2", outcome: "failed", failed: true},
		{eventID: "p1", outcome: "applied"},
		{eventID: "p2", outcome: "failed", failed: true},
	}, h.journal.all())
}
