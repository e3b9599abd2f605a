package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*entity.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*entity.Order),
	}
}

// Put seeds an order. The order domain owns creation; this exists for
// local runs and tests.
func (r *OrderRepository) Put(order *entity.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) GetOrderWithRelations(ctx context.Context, orderID string) (*entity.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneOrder(r.orders[orderID]), nil
}

func (r *OrderRepository) SetOrderStatus(ctx context.Context, orderID string, expected, status entity.OrderStatus) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok || order.Status != expected {
		return false, nil
	}
	order.Status = status
	return true, nil
}

func cloneOrder(order *entity.Order) *entity.Order {
	if order == nil {
		return nil
	}
	clone := *order
	if order.Customer != nil {
		c := *order.Customer
		clone.Customer = &c
	}
	if order.Restaurant != nil {
		rest := *order.Restaurant
		clone.Restaurant = &rest
	}
	return &clone
}
