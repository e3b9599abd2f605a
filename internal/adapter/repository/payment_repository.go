package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/model"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a GORM-backed payment repository.
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	m := paymentToModel(payment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.PaymentInProgress(payment.OrderID)
		}
		r.logger.Error("Failed to create payment",
			zap.String("order_id", payment.OrderID),
			zap.Error(err),
		)
		return err
	}
	payment.CreatedAt = m.CreatedAt
	payment.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*entity.Payment, error) {
	var m model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return paymentToEntity(&m), nil
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*entity.Payment, error) {
	var m model.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return paymentToEntity(&m), nil
}

func (r *paymentRepository) GetActiveByOrderID(ctx context.Context, orderID string) (*entity.Payment, error) {
	var m model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, statusStrings(entity.ActiveStatuses())).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return paymentToEntity(&m), nil
}

func (r *paymentRepository) List(ctx context.Context, filter entity.PaymentFilter) ([]*entity.Payment, error) {
	query := r.db.WithContext(ctx).Model(&model.Payment{})
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at IS NOT NULL AND expires_at <= ?", *filter.ExpiresBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []model.Payment
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*entity.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, paymentToEntity(&models[i]))
	}
	return payments, nil
}

// TransitionStatus is a compare-and-set on status. Two writers racing on
// the same transition see exactly one applied=true.
func (r *paymentRepository) TransitionStatus(ctx context.Context, id string, from []entity.PaymentStatus, update entity.StatusUpdate) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":     string(update.Status),
		"updated_at": time.Now().UTC(),
	}
	query := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status IN ?", id, statusStrings(from))
	switch {
	case update.ReplacesExternalID != "" && update.ExternalID != "":
		query = query.Where("external_id = ?", update.ReplacesExternalID)
		updates["external_id"] = update.ExternalID
	case update.ExternalID != "":
		// never overwrite an id the provider already gave us
		updates["external_id"] = gorm.Expr("COALESCE(external_id, ?)", update.ExternalID)
	}
	setIfNotEmpty(updates, "provider_reference", update.ProviderReference)
	setIfNotEmpty(updates, "qr_payload", update.QRPayload)
	setIfNotEmpty(updates, "redirect_url", update.RedirectURL)
	setIfNotEmpty(updates, "client_secret", update.ClientSecret)
	setIfNotEmpty(updates, "error_code", update.ErrorCode)
	setIfNotEmpty(updates, "error_message", update.ErrorMessage)
	if update.ExpiresAt != nil {
		updates["expires_at"] = *update.ExpiresAt
	}
	if update.ApprovedAt != nil {
		updates["approved_at"] = *update.ApprovedAt
	}
	if update.RefundedAt != nil {
		updates["refunded_at"] = *update.RefundedAt
	}
	if len(update.ProviderData) > 0 {
		updates["provider_data"] = datatypes.JSONMap(update.ProviderData)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		r.logger.Error("Failed to transition payment",
			zap.String("payment_id", id),
			zap.String("to", string(update.Status)),
			zap.Error(result.Error),
		)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) BindExternalID(ctx context.Context, id, externalID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND external_id IS NULL", id).
		Updates(map[string]interface{}{
			"external_id": externalID,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimRefund takes the refund claim on an approved payment. Claims older
// than ttl are considered abandoned and may be taken again.
func (r *paymentRepository) ClaimRefund(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ? AND (refund_claimed_at IS NULL OR refund_claimed_at < ?)",
			id, string(entity.PaymentStatusApproved), now.Add(-ttl)).
		Updates(map[string]interface{}{
			"refund_claimed_at": now,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) ReleaseRefund(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Update("refund_claimed_at", nil).Error
}

func setIfNotEmpty(updates map[string]interface{}, column, value string) {
	if value != "" {
		updates[column] = value
	}
}

func statusStrings(statuses []entity.PaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// isUniqueViolation recognises duplicate-key errors from postgres (with
// TranslateError) and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func paymentToModel(p *entity.Payment) *model.Payment {
	return &model.Payment{
		ID:                p.ID,
		OrderID:           p.OrderID,
		UserID:            p.UserID,
		Method:            string(p.Method),
		Status:            string(p.Status),
		Provider:          p.Provider,
		ExternalID:        nullable(p.ExternalID),
		ProviderReference: nullable(p.ProviderReference),
		Amount:            p.Amount,
		Currency:          p.Currency,
		QRPayload:         nullable(p.QRPayload),
		RedirectURL:       nullable(p.RedirectURL),
		ClientSecret:      nullable(p.ClientSecret),
		ErrorCode:         nullable(p.ErrorCode),
		ErrorMessage:      nullable(p.ErrorMessage),
		ExpiresAt:         p.ExpiresAt,
		ApprovedAt:        p.ApprovedAt,
		RefundedAt:        p.RefundedAt,
		RefundClaimedAt:   p.RefundClaimedAt,
		ProviderData:      datatypes.JSONMap(p.ProviderData),
	}
}

func paymentToEntity(m *model.Payment) *entity.Payment {
	return &entity.Payment{
		ID:                m.ID,
		OrderID:           m.OrderID,
		UserID:            m.UserID,
		Method:            entity.PaymentMethod(m.Method),
		Status:            entity.PaymentStatus(m.Status),
		Provider:          m.Provider,
		ExternalID:        deref(m.ExternalID),
		ProviderReference: deref(m.ProviderReference),
		Amount:            m.Amount,
		Currency:          m.Currency,
		QRPayload:         deref(m.QRPayload),
		RedirectURL:       deref(m.RedirectURL),
		ClientSecret:      deref(m.ClientSecret),
		ErrorCode:         deref(m.ErrorCode),
		ErrorMessage:      deref(m.ErrorMessage),
		ExpiresAt:         m.ExpiresAt,
		ApprovedAt:        m.ApprovedAt,
		RefundedAt:        m.RefundedAt,
		RefundClaimedAt:   m.RefundClaimedAt,
		ProviderData:      map[string]interface{}(m.ProviderData),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
