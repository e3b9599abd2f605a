package repository

import (
	"context"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

type CustomerMappingRepository interface {
	Create(ctx context.Context, mapping *entity.CustomerMapping) error
	GetByProviderCustomerID(ctx context.Context, provider, providerCustomerID string) (*entity.CustomerMapping, error)
	GetByUserID(ctx context.Context, provider, userID string) (*entity.CustomerMapping, error)
	Update(ctx context.Context, mapping *entity.CustomerMapping) error
}
