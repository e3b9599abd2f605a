package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
)

// PaymentRepository keeps payments in a map. It enforces the same rules
// as the SQL store: one active payment per order, a unique
// (provider, external_id) pair and compare-and-set status writes.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*entity.Payment
	now      func() time.Time
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*entity.Payment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	_ = ctx
	if payment == nil || payment.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[payment.ID]; exists {
		return fmt.Errorf("payment repository: duplicate id %s", payment.ID)
	}
	if payment.Status.IsActive() {
		for _, existing := range r.payments {
			if existing.OrderID == payment.OrderID && existing.Status.IsActive() {
				return domainerrors.PaymentInProgress(payment.OrderID)
			}
		}
	}
	if payment.ExternalID != "" && r.externalTaken(payment.Provider, payment.ExternalID, payment.ID) {
		return fmt.Errorf("payment repository: external id %s already bound", payment.ExternalID)
	}

	now := r.now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	r.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*entity.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return clonePayment(r.payments[id]), nil
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*entity.Payment, error) {
	_ = ctx
	if externalID == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.Provider == provider && p.ExternalID == externalID {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r *PaymentRepository) GetActiveByOrderID(ctx context.Context, orderID string) (*entity.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status.IsActive() {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter entity.PaymentFilter) ([]*entity.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Payment
	for _, p := range r.payments {
		if filter.OrderID != "" && p.OrderID != filter.OrderID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
			continue
		}
		if filter.ExpiresBefore != nil && (p.ExpiresAt == nil || p.ExpiresAt.After(*filter.ExpiresBefore)) {
			continue
		}
		out = append(out, clonePayment(p))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from []entity.PaymentStatus, update entity.StatusUpdate) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok || !containsStatus(from, p.Status) {
		return false, nil
	}
	replace := update.ReplacesExternalID != "" && update.ExternalID != ""
	if replace && p.ExternalID != update.ReplacesExternalID {
		return false, nil
	}
	if (replace || p.ExternalID == "") && update.ExternalID != "" && r.externalTaken(p.Provider, update.ExternalID, id) {
		return false, fmt.Errorf("payment repository: external id %s already bound", update.ExternalID)
	}

	p.Status = update.Status
	if replace || p.ExternalID == "" {
		p.ExternalID = update.ExternalID
	}
	setIfNotEmpty(&p.ProviderReference, update.ProviderReference)
	setIfNotEmpty(&p.QRPayload, update.QRPayload)
	setIfNotEmpty(&p.RedirectURL, update.RedirectURL)
	setIfNotEmpty(&p.ClientSecret, update.ClientSecret)
	setIfNotEmpty(&p.ErrorCode, update.ErrorCode)
	setIfNotEmpty(&p.ErrorMessage, update.ErrorMessage)
	if update.ExpiresAt != nil {
		p.ExpiresAt = cloneTime(update.ExpiresAt)
	}
	if update.ApprovedAt != nil {
		p.ApprovedAt = cloneTime(update.ApprovedAt)
	}
	if update.RefundedAt != nil {
		p.RefundedAt = cloneTime(update.RefundedAt)
	}
	if len(update.ProviderData) > 0 {
		p.ProviderData = cloneMap(update.ProviderData)
	}
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *PaymentRepository) BindExternalID(ctx context.Context, id, externalID string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok || p.ExternalID != "" {
		return false, nil
	}
	if r.externalTaken(p.Provider, externalID, id) {
		return false, fmt.Errorf("payment repository: external id %s already bound", externalID)
	}
	p.ExternalID = externalID
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *PaymentRepository) ClaimRefund(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok || p.Status != entity.PaymentStatusApproved {
		return false, nil
	}
	if p.RefundClaimedAt != nil && !p.RefundClaimedAt.Before(now.Add(-ttl)) {
		return false, nil
	}
	p.RefundClaimedAt = &now
	p.UpdatedAt = r.now()
	return true, nil
}

func (r *PaymentRepository) ReleaseRefund(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.payments[id]; ok {
		p.RefundClaimedAt = nil
	}
	return nil
}

// externalTaken must be called with mu held.
func (r *PaymentRepository) externalTaken(provider, externalID, exceptID string) bool {
	for id, p := range r.payments {
		if id != exceptID && p.Provider == provider && p.ExternalID == externalID {
			return true
		}
	}
	return false
}

func containsStatus(statuses []entity.PaymentStatus, s entity.PaymentStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func clonePayment(p *entity.Payment) *entity.Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ExpiresAt = cloneTime(p.ExpiresAt)
	clone.ApprovedAt = cloneTime(p.ApprovedAt)
	clone.RefundedAt = cloneTime(p.RefundedAt)
	clone.RefundClaimedAt = cloneTime(p.RefundClaimedAt)
	clone.ProviderData = cloneMap(p.ProviderData)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
