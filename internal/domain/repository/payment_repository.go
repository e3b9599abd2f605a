package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

// PaymentRepository persists payment attempts. Status writes are
// compare-and-set: they only apply while the stored status is one of the
// expected sources.
type PaymentRepository interface {
	// Create inserts a PENDING payment. It returns errors.ErrPaymentInProgress
	// when the order already has an active payment.
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id string) (*entity.Payment, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*entity.Payment, error)
	GetActiveByOrderID(ctx context.Context, orderID string) (*entity.Payment, error)
	List(ctx context.Context, filter entity.PaymentFilter) ([]*entity.Payment, error)
	// TransitionStatus applies update when the current status is in from.
	// applied is false when another writer moved the payment first.
	TransitionStatus(ctx context.Context, id string, from []entity.PaymentStatus, update entity.StatusUpdate) (applied bool, err error)
	// BindExternalID sets the provider id once; it never overwrites.
	BindExternalID(ctx context.Context, id, externalID string) (bool, error)
	// ClaimRefund reserves an approved payment for one refund request at a
	// time. Claims older than ttl may be taken over.
	ClaimRefund(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseRefund(ctx context.Context, id string) error
}
