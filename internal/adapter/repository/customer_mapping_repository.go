package repository

import (
	"context"
	"errors"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/model"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"gorm.io/gorm"
)

type customerMappingRepository struct {
	db *gorm.DB
}

func NewCustomerMappingRepository(db *gorm.DB) repository.CustomerMappingRepository {
	return &customerMappingRepository{
		db: db,
	}
}

// modelToEntity converts a model.CustomerMapping to entity.CustomerMapping
func (r *customerMappingRepository) modelToEntity(m *model.CustomerMapping) *entity.CustomerMapping {
	if m == nil {
		return nil
	}
	return &entity.CustomerMapping{
		ID:                 m.ID,
		Provider:           m.Provider,
		ProviderCustomerID: m.ProviderCustomerID,
		UserID:             m.UserID,
		Email:              m.CustomerEmail,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// entityToModel converts an entity.CustomerMapping to model.CustomerMapping
func (r *customerMappingRepository) entityToModel(e *entity.CustomerMapping) *model.CustomerMapping {
	return &model.CustomerMapping{
		ID:                 e.ID,
		Provider:           e.Provider,
		ProviderCustomerID: e.ProviderCustomerID,
		UserID:             e.UserID,
		CustomerEmail:      e.Email,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (r *customerMappingRepository) Create(ctx context.Context, mapping *entity.CustomerMapping) error {
	m := r.entityToModel(mapping)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	mapping.ID = m.ID
	mapping.CreatedAt = m.CreatedAt
	mapping.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *customerMappingRepository) GetByProviderCustomerID(ctx context.Context, provider, providerCustomerID string) (*entity.CustomerMapping, error) {
	var mapping model.CustomerMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_customer_id = ?", provider, providerCustomerID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.modelToEntity(&mapping), nil
}

func (r *customerMappingRepository) GetByUserID(ctx context.Context, provider, userID string) (*entity.CustomerMapping, error) {
	var mapping model.CustomerMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND user_id = ?", provider, userID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.modelToEntity(&mapping), nil
}

func (r *customerMappingRepository) Update(ctx context.Context, mapping *entity.CustomerMapping) error {
	return r.db.WithContext(ctx).Save(r.entityToModel(mapping)).Error
}
