package entity

import "github.com/shopspring/decimal"

// Order is owned by the order domain. Payments only read it and move it
// from PENDING_PAYMENT to CONFIRMED.
type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Status     OrderStatus     `json:"status"`
	Customer   *Customer       `json:"customer,omitempty"`
	Restaurant *Restaurant     `json:"restaurant,omitempty"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// TaxID is the payer document (CPF/CNPJ) some wallets require.
	TaxID string `json:"tax_id,omitempty"`
}

type Restaurant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// BelongsTo reports whether userID placed the order.
func (o *Order) BelongsTo(userID string) bool {
	return o != nil && userID != "" && o.CustomerID == userID
}
