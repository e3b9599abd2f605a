package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookEvent journals one verified provider notification and what
// reconciling it did. Redeliveries update the same row.
type WebhookEvent struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider       string           `gorm:"size:30;not null;uniqueIndex:idx_webhook_events_provider_event,priority:1" json:"provider"`
	EventID        string           `gorm:"size:255;not null;uniqueIndex:idx_webhook_events_provider_event,priority:2" json:"event_id"`
	EventType      string           `gorm:"size:100;not null;index" json:"event_type"`
	ExternalID     string           `gorm:"size:255;index" json:"external_id"`
	Reference      *string          `gorm:"size:64" json:"reference,omitempty"`
	ProviderStatus string           `gorm:"size:50" json:"provider_status"`
	Status         *string          `gorm:"size:20" json:"status,omitempty"`
	Amount         *decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount,omitempty"`
	Outcome        string           `gorm:"size:30;not null;index" json:"outcome"`
	LastError      *string          `gorm:"type:text" json:"last_error,omitempty"`
	Attempts       int              `gorm:"not null;default:1" json:"attempts"`
	ReceivedAt     time.Time        `json:"received_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}
