package database

import (
	"github.com/wekeepgrowing/order-payments/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Payment         domainRepo.PaymentRepository
	Order           domainRepo.OrderRepository
	CustomerMapping domainRepo.CustomerMappingRepository
	WebhookEvent    domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Payment:         repository.NewPaymentRepository(db, logger),
		Order:           repository.NewOrderRepository(db, logger),
		CustomerMapping: repository.NewCustomerMappingRepository(db),
		WebhookEvent:    repository.NewWebhookEventRepository(db, logger),
	}
}
