package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/adapter/repository/memory"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"github.com/wekeepgrowing/order-payments/pkg/emvqr"
	"go.uber.org/zap"
)

func TestProcessPayment_CardApprovedConfirmsOrder(t *testing.T) {
	gateway := cardGateway(&provider.PaymentResult{
		Success:    true,
		Status:     entity.PaymentStatusApproved,
		ExternalID: "ch_123",
	})
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID:   "order-1",
		Method:    entity.PaymentMethodCard,
		Amount:    decimal.RequireFromString("49.90"),
		CardToken: "tok_visa",
	}, customerID)
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusApproved, payment.Status)
	assert.Equal(t, "ch_123", payment.ExternalID)
	assert.NotNil(t, payment.ApprovedAt)
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.PaymentStatusPending, events[0].From)
	assert.Equal(t, entity.PaymentStatusApproved, events[0].To)
	assert.Equal(t, usecase.SourceOrchestrator, events[0].Source)
}

func TestProcessPayment_PixReturnsValidPayloadWithoutConfirming(t *testing.T) {
	const orderID = "3f2b8c1e-5a4d-4e7b-9c0a-1d2e3f4a5b6c"
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	order := h.seedOrder(t, orderID, "30.00")
	order.Restaurant = &entity.Restaurant{ID: "r2", Name: "Cantina da Nonna Ação", City: "Sao Paulo"}
	require.NoError(t, h.orders.Put(order))

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: orderID,
		Method:  entity.PaymentMethodPix,
		Amount:  decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusPending, payment.Status)
	require.NotEmpty(t, payment.QRPayload)
	assert.NoError(t, emvqr.Validate(payment.QRPayload))
	body := payment.QRPayload[:len(payment.QRPayload)-4]
	assert.Equal(t, emvqr.FormatCRC(emvqr.CRC16([]byte(body))), payment.QRPayload[len(payment.QRPayload)-4:])
	assert.NotEmpty(t, payment.ExternalID)
	assert.NotNil(t, payment.ExpiresAt)

	decoded, err := emvqr.DecodePix(payment.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, pixEVPKey, decoded.Key)
	assert.True(t, decoded.Amount.Equal(decimal.RequireFromString("30.00")))
	assert.Equal(t, payment.ExternalID, decoded.TxID)
	for _, r := range decoded.Description {
		assert.Less(t, r, rune(128))
	}

	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, orderID))
	assert.Empty(t, h.events.all())
}

func TestProcessPayment_ConcurrentCallsCreateOnePayment(t *testing.T) {
	gateway := &fakeGateway{name: provider.ProviderTypePix, methods: []entity.PaymentMethod{entity.PaymentMethodPix}}
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "30.00")

	req := usecase.ProcessPaymentRequest{
		OrderID: "order-1",
		Method:  entity.PaymentMethodPix,
		Amount:  decimal.RequireFromString("30.00"),
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		inProgress int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.ProcessPayment(context.Background(), req, customerID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, domainerrors.ErrPaymentInProgress) {
				inProgress++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, inProgress)

	payments, err := h.payments.List(context.Background(), entity.PaymentFilter{OrderID: "order-1"})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, 1, gateway.callCount())
}

func TestProcessPayment_RejectsBeforeCallingProvider(t *testing.T) {
	gateway := cardGateway(&provider.PaymentResult{Success: true, Status: entity.PaymentStatusApproved})
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")
	require.NoError(t, h.orders.Put(&entity.Order{
		ID: "order-2", CustomerID: customerID, Total: decimal.RequireFromString("10.00"), Status: entity.OrderStatusConfirmed,
	}))

	tests := []struct {
		name    string
		req     usecase.ProcessPaymentRequest
		userID  string
		wantErr error
	}{
		{
			name:    "amount mismatch",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.00")},
			userID:  customerID,
			wantErr: domainerrors.ErrValidation,
		},
		{
			name:    "foreign order looks missing",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90")},
			userID:  "someone-else",
			wantErr: domainerrors.ErrOrderNotFound,
		},
		{
			name:    "unknown order",
			req:     usecase.ProcessPaymentRequest{OrderID: "missing", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90")},
			userID:  customerID,
			wantErr: domainerrors.ErrOrderNotFound,
		},
		{
			name:    "order not awaiting payment",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-2", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("10.00")},
			userID:  customerID,
			wantErr: domainerrors.ErrValidation,
		},
		{
			name:    "no gateway for method",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-1", Method: entity.PaymentMethodWallet, Amount: decimal.RequireFromString("49.90")},
			userID:  customerID,
			wantErr: domainerrors.ErrUnsupportedMethod,
		},
		{
			name:    "unknown method",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-1", Method: "crypto", Amount: decimal.RequireFromString("49.90")},
			userID:  customerID,
			wantErr: domainerrors.ErrValidation,
		},
		{
			name:    "saved card without vault",
			req:     usecase.ProcessPaymentRequest{OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90"), SavedCardID: "pm_1"},
			userID:  customerID,
			wantErr: domainerrors.ErrFeatureUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.ProcessPayment(context.Background(), tt.req, tt.userID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, gateway.callCount())
	payments, err := h.payments.List(context.Background(), entity.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestProcessPayment_TimeoutLeavesPaymentProcessing(t *testing.T) {
	gateway := &fakeGateway{
		name:    provider.ProviderTypeStripe,
		methods: []entity.PaymentMethod{entity.PaymentMethodCard},
		create: func(ctx context.Context, _ *entity.Order, _ *provider.PaymentData) (*provider.PaymentResult, error) {
			<-ctx.Done()
			return provider.Rejected("provider_unavailable", "network error"), nil
		},
	}
	h := newHarness(t, config.PaymentsConfig{ProviderTimeout: 20 * time.Millisecond}, gateway)
	h.seedOrder(t, "order-1", "49.90")

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID:   "order-1",
		Method:    entity.PaymentMethodCard,
		Amount:    decimal.RequireFromString("49.90"),
		CardToken: "tok_visa",
	}, customerID)
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusProcessing, payment.Status)
	assert.Equal(t, "provider_timeout", payment.ErrorCode)
	assert.Nil(t, payment.ExpiresAt)
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))
	assert.Equal(t, 1, gateway.callCount())

	// still active: a second attempt must not double charge
	_, err = h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID:   "order-1",
		Method:    entity.PaymentMethodCard,
		Amount:    decimal.RequireFromString("49.90"),
		CardToken: "tok_visa",
	}, customerID)
	assert.ErrorIs(t, err, domainerrors.ErrPaymentInProgress)
}

func TestProcessPayment_DeclineLeavesOrderRetryable(t *testing.T) {
	gateway := cardGateway(provider.Rejected("card_declined", "Cartão recusado"))
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")

	req := usecase.ProcessPaymentRequest{
		OrderID:   "order-1",
		Method:    entity.PaymentMethodCard,
		Amount:    decimal.RequireFromString("49.90"),
		CardToken: "tok_chargeDeclined",
	}
	first, err := h.service.ProcessPayment(context.Background(), req, customerID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRejected, first.Status)
	assert.Equal(t, "card_declined", first.ErrorCode)
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))

	second, err := h.service.ProcessPayment(context.Background(), req, customerID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := h.service.ListOrderPayments(context.Background(), "order-1", customerID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestProcessPayment_SavedCardResolvesVaultCustomer(t *testing.T) {
	var seen *provider.PaymentData
	gateway := cardGateway(nil)
	gateway.features = append(gateway.features, provider.FeatureSavedCards)
	gateway.create = func(_ context.Context, _ *entity.Order, data *provider.PaymentData) (*provider.PaymentResult, error) {
		seen = data
		return &provider.PaymentResult{Success: true, Status: entity.PaymentStatusApproved, ExternalID: "pi_1"}, nil
	}
	vaulted := &vaultGateway{fakeGateway: gateway, cards: map[string][]entity.SavedCard{}}
	h := newHarness(t, config.PaymentsConfig{}, vaulted)
	h.seedOrder(t, "order-1", "49.90")
	require.NoError(t, h.mappings.Create(context.Background(), &entity.CustomerMapping{
		Provider: "stripe", ProviderCustomerID: "cus_1", UserID: customerID,
	}))

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID:     "order-1",
		Method:      entity.PaymentMethodCard,
		Amount:      decimal.RequireFromString("49.90"),
		SavedCardID: "pm_1",
	}, customerID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusApproved, payment.Status)
	require.NotNil(t, seen)
	assert.Equal(t, "cus_1", seen.CustomerID)
	assert.Equal(t, payment.ID, seen.PaymentID)
	assert.Equal(t, "ana@example.com", seen.PayerEmail)
}

func TestSimulatePaymentConfirmation(t *testing.T) {
	t.Run("refused outside sandbox", func(t *testing.T) {
		h := newHarness(t, config.PaymentsConfig{}, pixGateway())
		h.seedOrder(t, "order-1", "30.00")

		_, err := h.service.SimulatePaymentConfirmation(context.Background(), "order-1")
		assert.ErrorIs(t, err, domainerrors.ErrSandboxOnly)
	})

	t.Run("approves the active payment in sandbox", func(t *testing.T) {
		h := newHarness(t, config.PaymentsConfig{Sandbox: true}, pixGateway())
		h.seedOrder(t, "order-1", "30.00")
		_, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
			OrderID: "order-1", Method: entity.PaymentMethodPix, Amount: decimal.RequireFromString("30.00"),
		}, customerID)
		require.NoError(t, err)

		payment, err := h.service.SimulatePaymentConfirmation(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusApproved, payment.Status)
		assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

		_, err = h.service.SimulatePaymentConfirmation(context.Background(), "order-1")
		assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)
	})
}

func TestConfirmManualPayment(t *testing.T) {
	card := cardGateway(&provider.PaymentResult{Success: true, Status: entity.PaymentStatusPending, ClientSecret: "pi_1_secret"})
	h := newHarness(t, config.PaymentsConfig{}, pixGateway(), card)
	h.seedOrder(t, "order-1", "30.00")
	h.seedOrder(t, "order-2", "30.00")

	pix, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodPix, Amount: decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)

	confirmed, err := h.service.ConfirmManualPayment(context.Background(), pix.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusApproved, confirmed.Status)
	assert.Equal(t, "admin-1", confirmed.ProviderData["confirmed_by"])
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

	// replay is harmless
	again, err := h.service.ConfirmManualPayment(context.Background(), pix.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, confirmed.UpdatedAt, again.UpdatedAt)

	cardPayment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-2", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)
	_, err = h.service.ConfirmManualPayment(context.Background(), cardPayment.ID, "admin-1")
	assert.ErrorIs(t, err, domainerrors.ErrFeatureUnsupported)

	_, err = h.service.ConfirmManualPayment(context.Background(), "missing", "admin-1")
	assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)
}

func TestRefundPayment(t *testing.T) {
	gateway := cardGateway(&provider.PaymentResult{Success: true, Status: entity.PaymentStatusApproved, ExternalID: "pi_1"})
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")

	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90"), CardToken: "tok_visa",
	}, customerID)
	require.NoError(t, err)

	refunded, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, "re_"+payment.ID, refunded.ProviderData["refund_id"])
	assert.Equal(t, []string{payment.ID}, gateway.refunded)

	// refunds leave the order alone
	assert.Equal(t, entity.OrderStatusConfirmed, h.orderStatus(t, "order-1"))

	again, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, again.Status)
	assert.Len(t, gateway.refunded, 1)
}

func TestRefundPayment_RequiresApproval(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	h.seedOrder(t, "order-1", "30.00")
	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodPix, Amount: decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)

	_, err = h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
	assert.ErrorIs(t, err, domainerrors.ErrInvariantViolation)
	assert.Equal(t, entity.PaymentStatusPending, h.payment(t, payment.ID).Status)
}

func TestRefundPayment_ProviderFailureKeepsApproval(t *testing.T) {
	gateway := cardGateway(&provider.PaymentResult{Success: true, Status: entity.PaymentStatusApproved, ExternalID: "pi_1"})
	gateway.refundFn = func() error { return assert.AnError }
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")
	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90"), CardToken: "tok_visa",
	}, customerID)
	require.NoError(t, err)

	_, err = h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
	assert.ErrorIs(t, err, domainerrors.ErrProviderError)
	assert.Equal(t, entity.PaymentStatusApproved, h.payment(t, payment.ID).Status)

	// the failed attempt gives the claim back so a retry can reach the provider
	gateway.mu.Lock()
	gateway.refundFn = nil
	gateway.mu.Unlock()
	refunded, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, []string{payment.ID}, gateway.refunded)
}

func TestRefundPayment_ConcurrentRequestsReachProviderOnce(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gateway := cardGateway(&provider.PaymentResult{Success: true, Status: entity.PaymentStatusApproved, ExternalID: "pi_1"})
	gateway.refundFn = func() error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	}
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "49.90")
	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodCard, Amount: decimal.RequireFromString("49.90"), CardToken: "tok_visa",
	}, customerID)
	require.NoError(t, err)

	type outcome struct {
		payment *entity.Payment
		err     error
	}
	first := make(chan outcome, 1)
	go func() {
		refunded, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-1")
		first <- outcome{refunded, err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("refund never reached the provider")
	}

	current, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-2")
	assert.ErrorIs(t, err, domainerrors.ErrPaymentInProgress)
	assert.Equal(t, entity.PaymentStatusApproved, current.Status)

	close(release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, entity.PaymentStatusRefunded, got.payment.Status)

	again, err := h.service.RefundPayment(context.Background(), payment.ID, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, again.Status)
	assert.Equal(t, []string{payment.ID}, gateway.refunded)
}

func TestExpireStalePayments(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	expiring := map[string]*time.Time{"order-1": &past, "order-2": &future}

	gateway := &fakeGateway{
		name:    provider.ProviderTypePix,
		methods: []entity.PaymentMethod{entity.PaymentMethodPix},
		create: func(_ context.Context, order *entity.Order, _ *provider.PaymentData) (*provider.PaymentResult, error) {
			return &provider.PaymentResult{Success: true, Status: entity.PaymentStatusPending, ExpiresAt: expiring[order.ID]}, nil
		},
	}
	h := newHarness(t, config.PaymentsConfig{}, gateway)
	h.seedOrder(t, "order-1", "30.00")
	h.seedOrder(t, "order-2", "30.00")

	var ids []string
	for _, orderID := range []string{"order-1", "order-2"} {
		p, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
			OrderID: orderID, Method: entity.PaymentMethodPix, Amount: decimal.RequireFromString("30.00"),
		}, customerID)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	count, err := h.service.ExpireStalePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, entity.PaymentStatusExpired, h.payment(t, ids[0]).Status)
	assert.Equal(t, entity.PaymentStatusPending, h.payment(t, ids[1]).Status)
	assert.Equal(t, entity.OrderStatusPendingPayment, h.orderStatus(t, "order-1"))

	count, err = h.service.ExpireStalePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetPayment_HidesForeignPayments(t *testing.T) {
	h := newHarness(t, config.PaymentsConfig{}, pixGateway())
	h.seedOrder(t, "order-1", "30.00")
	payment, err := h.service.ProcessPayment(context.Background(), usecase.ProcessPaymentRequest{
		OrderID: "order-1", Method: entity.PaymentMethodPix, Amount: decimal.RequireFromString("30.00"),
	}, customerID)
	require.NoError(t, err)

	got, err := h.service.GetPayment(context.Background(), payment.ID, customerID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)

	_, err = h.service.GetPayment(context.Background(), payment.ID, "intruder")
	assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)

	_, err = h.service.ListOrderPayments(context.Background(), "order-1", "intruder")
	assert.ErrorIs(t, err, domainerrors.ErrOrderNotFound)
}

func TestTransitioner_PublishFailureDoesNotFailTransition(t *testing.T) {
	payments := memory.NewPaymentRepository()
	orders := memory.NewOrderRepository()
	require.NoError(t, orders.Put(&entity.Order{ID: "order-1", Status: entity.OrderStatusPendingPayment}))
	require.NoError(t, payments.Create(context.Background(), &entity.Payment{
		ID: "p1", OrderID: "order-1", Provider: "cash", Method: entity.PaymentMethodCash, Status: entity.PaymentStatusPending,
	}))
	payment, err := payments.GetByID(context.Background(), "p1")
	require.NoError(t, err)

	transitions := usecase.NewTransitioner(payments, orders, failingPublisher{}, nil, zap.NewNop())
	current, applied, err := transitions.Apply(context.Background(), payment, entity.StatusUpdate{Status: entity.PaymentStatusApproved}, usecase.SourceManual)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, entity.PaymentStatusApproved, current.Status)

	order, err := orders.GetOrderWithRelations(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, order.Status)
}
