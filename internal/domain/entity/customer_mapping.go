package entity

import "time"

// CustomerMapping links a local user to the customer object a card-vault
// provider keeps for them.
type CustomerMapping struct {
	ID                 int64     `json:"id"`
	Provider           string    `json:"provider"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SavedCard is a vaulted card as returned to the owner. Only display data
// is kept; the PAN never reaches this service.
type SavedCard struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}
