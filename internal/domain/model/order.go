package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the order domain's table as seen by payments. Only status is
// ever written from here.
type Order struct {
	ID           string          `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   string          `gorm:"type:uuid;not null;index" json:"customer_id"`
	RestaurantID string          `gorm:"type:uuid;index" json:"restaurant_id"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	Status       string          `gorm:"size:30;not null;index" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Customer   *Customer   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Restaurant *Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type Customer struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string `gorm:"size:255" json:"name"`
	Email string `gorm:"size:255" json:"email"`
	TaxID string `gorm:"column:tax_id;size:20" json:"tax_id"`
}

func (Customer) TableName() string {
	return "customers"
}

type Restaurant struct {
	ID   string `gorm:"type:uuid;primaryKey" json:"id"`
	Name string `gorm:"size:255" json:"name"`
	City string `gorm:"size:100" json:"city"`
}

func (Restaurant) TableName() string {
	return "restaurants"
}
