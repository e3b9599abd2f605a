package repository

import (
	"context"
	"errors"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/model"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewOrderRepository reads orders from the shared database. Writes are
// limited to conditional status changes.
func NewOrderRepository(db *gorm.DB, logger *zap.Logger) repository.OrderRepository {
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) GetOrderWithRelations(ctx context.Context, orderID string) (*entity.Order, error) {
	var m model.Order
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Restaurant").
		Where("id = ?", orderID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	order := &entity.Order{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Total:      m.Total,
		Currency:   m.Currency,
		Status:     entity.OrderStatus(m.Status),
	}
	if m.Customer != nil {
		order.Customer = &entity.Customer{
			ID:    m.Customer.ID,
			Name:  m.Customer.Name,
			Email: m.Customer.Email,
			TaxID: m.Customer.TaxID,
		}
	}
	if m.Restaurant != nil {
		order.Restaurant = &entity.Restaurant{
			ID:   m.Restaurant.ID,
			Name: m.Restaurant.Name,
			City: m.Restaurant.City,
		}
	}
	return order, nil
}

func (r *orderRepository) SetOrderStatus(ctx context.Context, orderID string, expected, status entity.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, string(expected)).
		Update("status", string(status))
	if result.Error != nil {
		r.logger.Error("Failed to update order status",
			zap.String("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(result.Error),
		)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
