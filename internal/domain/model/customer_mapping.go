package model

import (
	"time"
)

// CustomerMapping maps provider customer IDs to local user IDs
type CustomerMapping struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider           string    `gorm:"size:30;not null;uniqueIndex:idx_customer_mappings_provider_customer,priority:1;uniqueIndex:idx_customer_mappings_provider_user,priority:1" json:"provider"`
	ProviderCustomerID string    `gorm:"column:provider_customer_id;not null;size:100;uniqueIndex:idx_customer_mappings_provider_customer,priority:2" json:"provider_customer_id"`
	UserID             string    `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_customer_mappings_provider_user,priority:2" json:"user_id"`
	CustomerEmail      string    `gorm:"size:255" json:"customer_email"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerMapping) TableName() string {
	return "customer_mappings"
}
