package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment represents a payment attempt row
type Payment struct {
	ID                string            `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID           string            `gorm:"type:uuid;not null;index" json:"order_id"`
	UserID            string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Method            string            `gorm:"size:20;not null" json:"method"`
	Status            string            `gorm:"size:20;not null;index" json:"status"`
	Provider          string            `gorm:"size:30;not null;uniqueIndex:idx_payments_provider_external,priority:1" json:"provider"`
	ExternalID        *string           `gorm:"size:255;uniqueIndex:idx_payments_provider_external,priority:2" json:"external_id,omitempty"`
	ProviderReference *string           `gorm:"size:255" json:"provider_reference,omitempty"`
	Amount            decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string            `gorm:"size:3;not null" json:"currency"`
	QRPayload         *string           `gorm:"type:text" json:"qr_payload,omitempty"`
	RedirectURL       *string           `gorm:"type:text" json:"redirect_url,omitempty"`
	ClientSecret      *string           `gorm:"size:255" json:"-"`
	ErrorCode         *string           `gorm:"size:100" json:"error_code,omitempty"`
	ErrorMessage      *string           `gorm:"type:text" json:"error_message,omitempty"`
	ExpiresAt         *time.Time        `gorm:"index" json:"expires_at,omitempty"`
	ApprovedAt        *time.Time        `json:"approved_at,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`
	RefundClaimedAt   *time.Time        `json:"-"`
	ProviderData      datatypes.JSONMap `json:"provider_data,omitempty"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
