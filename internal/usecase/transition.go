package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

// Who moved a payment. Recorded on events and metrics.
const (
	SourceOrchestrator = "orchestrator"
	SourceWebhook      = "webhook"
	SourceManual       = "manual"
	SourceSimulation   = "simulation"
	SourceExpiry       = "expiry"
	SourceRefund       = "refund"
)

type decision int

const (
	decisionApply decision = iota
	decisionIgnore
	decisionViolation
)

// decide classifies a requested move. Replays, stale updates and anything
// arriving after a terminal status are ignored; same-rank lateral moves
// such as APPROVED -> REJECTED are violations.
func decide(from, to entity.PaymentStatus) decision {
	switch {
	case !to.IsValid() || from == to:
		return decisionIgnore
	case from.CanTransitionTo(to):
		return decisionApply
	case from.IsTerminal(), to.Rank() < from.Rank():
		return decisionIgnore
	}
	return decisionViolation
}

// Transitioner is the single place payment status changes are written.
// The orchestrator, the webhook reconciler, the expiry sweep and the admin
// operations all go through it.
type Transitioner struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	events   EventPublisher
	metrics  PaymentMetrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewTransitioner(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	events EventPublisher,
	metrics PaymentMetrics,
	logger *zap.Logger,
) *Transitioner {
	if events == nil {
		events = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Transitioner{
		payments: payments,
		orders:   orders,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply moves payment to update.Status with a compare-and-set write. It
// returns the stored payment and whether this call changed it. Losing the
// race to another writer is not an error.
func (t *Transitioner) Apply(ctx context.Context, payment *entity.Payment, update entity.StatusUpdate, source string) (*entity.Payment, bool, error) {
	from, to := payment.Status, update.Status

	switch decide(from, to) {
	case decisionIgnore:
		if from != to && from.IsTerminal() {
			t.logger.Warn("Ignoring status update for terminal payment",
				zap.String("payment_id", payment.ID),
				zap.String("status", string(from)),
				zap.String("requested", string(to)),
				zap.String("source", source))
		}
		if from == entity.PaymentStatusApproved && to == from {
			// an earlier delivery may have failed between the two writes
			if err := t.confirmOrder(ctx, payment); err != nil {
				return payment, false, err
			}
		}
		return payment, false, nil
	case decisionViolation:
		t.logger.Error("Illegal payment transition rejected",
			zap.String("payment_id", payment.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("source", source))
		return payment, false, domainerrors.InvariantViolation(payment.ID, string(from), string(to))
	}

	now := t.now()
	if to == entity.PaymentStatusApproved && update.ApprovedAt == nil {
		update.ApprovedAt = &now
	}
	if to == entity.PaymentStatusRefunded && update.RefundedAt == nil {
		update.RefundedAt = &now
	}

	applied, err := t.payments.TransitionStatus(ctx, payment.ID, entity.SourceStatuses(to), update)
	if err != nil {
		return payment, false, fmt.Errorf("failed to transition payment %s: %w", payment.ID, err)
	}

	current, err := t.reload(ctx, payment)
	if err != nil {
		return payment, false, err
	}
	if !applied {
		t.logger.Debug("Payment already moved by another writer",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(current.Status)),
			zap.String("requested", string(to)))
		return current, false, nil
	}

	t.logger.Info("Payment status changed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("provider", payment.Provider),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("source", source))
	t.metrics.TransitionApplied(payment.Provider, string(from), string(to), source)

	if to == entity.PaymentStatusApproved {
		if err := t.confirmOrder(ctx, current); err != nil {
			return current, true, err
		}
	}
	t.publish(ctx, current, from, source)
	return current, true, nil
}

// SaveDetails writes provider details without changing the status. It is a
// no-op once the payment has moved on.
func (t *Transitioner) SaveDetails(ctx context.Context, payment *entity.Payment, update entity.StatusUpdate) (*entity.Payment, error) {
	update.Status = payment.Status
	if _, err := t.payments.TransitionStatus(ctx, payment.ID, []entity.PaymentStatus{payment.Status}, update); err != nil {
		return payment, fmt.Errorf("failed to save payment %s details: %w", payment.ID, err)
	}
	return t.reload(ctx, payment)
}

// confirmOrder moves the order out of PENDING_PAYMENT. Orders already
// confirmed or cancelled are left alone.
func (t *Transitioner) confirmOrder(ctx context.Context, payment *entity.Payment) error {
	changed, err := t.orders.SetOrderStatus(ctx, payment.OrderID, entity.OrderStatusPendingPayment, entity.OrderStatusConfirmed)
	if err != nil {
		t.logger.Error("Failed to confirm order",
			zap.String("order_id", payment.OrderID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		return fmt.Errorf("failed to confirm order %s: %w", payment.OrderID, err)
	}
	if changed {
		t.logger.Info("Order confirmed",
			zap.String("order_id", payment.OrderID),
			zap.String("payment_id", payment.ID))
	}
	return nil
}

// publish is best effort; consumers reconcile from the payments table.
func (t *Transitioner) publish(ctx context.Context, payment *entity.Payment, from entity.PaymentStatus, source string) {
	event := entity.PaymentEvent{
		Type:       entity.PaymentEventStatusChanged,
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		Provider:   payment.Provider,
		Method:     payment.Method,
		From:       from,
		To:         payment.Status,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Source:     source,
		OccurredAt: t.now(),
	}
	if err := t.events.Publish(ctx, event); err != nil {
		t.logger.Warn("Payment event not published",
			zap.String("payment_id", payment.ID),
			zap.Error(err))
	}
}

func (t *Transitioner) reload(ctx context.Context, payment *entity.Payment) (*entity.Payment, error) {
	current, err := t.payments.GetByID(ctx, payment.ID)
	if err != nil {
		return payment, fmt.Errorf("failed to reload payment %s: %w", payment.ID, err)
	}
	if current == nil {
		return payment, domainerrors.PaymentNotFound(payment.ID)
	}
	return current, nil
}
