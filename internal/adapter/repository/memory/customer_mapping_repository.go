package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
)

type CustomerMappingRepository struct {
	mu       sync.RWMutex
	nextID   int64
	mappings map[int64]*entity.CustomerMapping
}

func NewCustomerMappingRepository() *CustomerMappingRepository {
	return &CustomerMappingRepository{
		mappings: make(map[int64]*entity.CustomerMapping),
	}
}

func (r *CustomerMappingRepository) Create(ctx context.Context, mapping *entity.CustomerMapping) error {
	_ = ctx
	if mapping == nil {
		return fmt.Errorf("customer mapping repository: mapping is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mappings {
		if m.Provider != mapping.Provider {
			continue
		}
		if m.UserID == mapping.UserID || m.ProviderCustomerID == mapping.ProviderCustomerID {
			return fmt.Errorf("customer mapping repository: duplicate mapping for %s", mapping.Provider)
		}
	}

	r.nextID++
	now := time.Now().UTC()
	mapping.ID = r.nextID
	mapping.CreatedAt = now
	mapping.UpdatedAt = now
	clone := *mapping
	r.mappings[mapping.ID] = &clone
	return nil
}

func (r *CustomerMappingRepository) GetByProviderCustomerID(ctx context.Context, provider, providerCustomerID string) (*entity.CustomerMapping, error) {
	return r.find(ctx, func(m *entity.CustomerMapping) bool {
		return m.Provider == provider && m.ProviderCustomerID == providerCustomerID
	})
}

func (r *CustomerMappingRepository) GetByUserID(ctx context.Context, provider, userID string) (*entity.CustomerMapping, error) {
	return r.find(ctx, func(m *entity.CustomerMapping) bool {
		return m.Provider == provider && m.UserID == userID
	})
}

func (r *CustomerMappingRepository) Update(ctx context.Context, mapping *entity.CustomerMapping) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[mapping.ID]; !ok {
		return fmt.Errorf("customer mapping repository: %d not found", mapping.ID)
	}
	mapping.UpdatedAt = time.Now().UTC()
	clone := *mapping
	r.mappings[mapping.ID] = &clone
	return nil
}

func (r *CustomerMappingRepository) find(ctx context.Context, match func(*entity.CustomerMapping) bool) (*entity.CustomerMapping, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.mappings {
		if match(m) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}
