package database

import (
	"fmt"
	"strings"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the tables payments owns
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if isPostgres(db) {
		if err := createExtensions(db); err != nil {
			logger.Error("Failed to create extensions", zap.Error(err))
			return err
		}
	}

	err := db.AutoMigrate(
		&model.Payment{},
		&model.CustomerMapping{},
		&model.WebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	if isPostgres(db) {
		if err := createStatusConstraint(db); err != nil {
			logger.Error("Failed to create status constraint", zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// MigrateOrderTables creates the order domain tables payments reads. The
// order service owns them in production; this is for local setups and tests.
func MigrateOrderTables(db *gorm.DB) error {
	return db.AutoMigrate(&model.Customer{}, &model.Restaurant{}, &model.Order{})
}

// createCustomIndexes creates indexes GORM tags cannot express
func createCustomIndexes(db *gorm.DB) error {
	// At most one PENDING/PROCESSING payment per order. Inserts racing on
	// the same order fail here instead of double charging.
	if err := db.Exec(fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_active_order ON payments (order_id) WHERE status IN (%s)`,
		quotedStatuses(entity.ActiveStatuses()),
	)).Error; err != nil {
		return err
	}

	// Expiry sweeper scan
	if err := db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_payments_expiring ON payments (expires_at) WHERE expires_at IS NOT NULL AND status IN (%s)`,
		quotedStatuses(entity.ActiveStatuses()),
	)).Error; err != nil {
		return err
	}

	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

func createStatusConstraint(db *gorm.DB) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_status')`).Scan(&exists).Error; err != nil {
		return err
	}
	if exists {
		return nil
	}
	all := []entity.PaymentStatus{
		entity.PaymentStatusPending, entity.PaymentStatusProcessing, entity.PaymentStatusApproved,
		entity.PaymentStatusRejected, entity.PaymentStatusExpired, entity.PaymentStatusRefunded,
	}
	return db.Exec(fmt.Sprintf(
		`ALTER TABLE payments ADD CONSTRAINT chk_payments_status CHECK (status IN (%s))`,
		quotedStatuses(all),
	)).Error
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func quotedStatuses(statuses []entity.PaymentStatus) string {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ",")
}
