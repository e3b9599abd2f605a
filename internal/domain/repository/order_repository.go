package repository

import (
	"context"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

// OrderRepository is the narrow view of the order domain payments need.
type OrderRepository interface {
	GetOrderWithRelations(ctx context.Context, orderID string) (*entity.Order, error)
	// SetOrderStatus moves the order to status only if it is currently in
	// expected. It reports whether the row changed.
	SetOrderStatus(ctx context.Context, orderID string, expected, status entity.OrderStatus) (bool, error)
}

// SettingsReader reads runtime configuration values.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool)
}

// Runtime setting keys outside the per-provider payments.<name>.enabled flags.
const (
	SettingSimulationEnabled = "payments.simulation.enabled"
)
