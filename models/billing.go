package models

import "gorm.io/gorm"

// Plan represents available credit packages
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // free, starter, grow, enterprise
	Description string `json:"description"`

	EmailCredits int `gorm:"not null" json:"email_credits"`
	PriceCents   int `gorm:"not null" json:"price_cents"`

	StripePriceID string `json:"stripe_price_id"`

	MaxProfiles    int `gorm:"default:1" json:"max_profiles"`
	DailySendLimit int `gorm:"default:500" json:"daily_send_limit"`
}

// Credit transaction types
const (
	CreditTxPurchase    = "purchase"
	CreditTxConsumption = "consumption"
	CreditTxRefund      = "refund"
)

// CreditTransaction records every credit movement on an account
type CreditTransaction struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Type        string `gorm:"not null" json:"type"` // purchase, consumption, refund
	Amount      int    `gorm:"not null" json:"amount"`
	Balance     int    `gorm:"not null" json:"balance"` // balance after this transaction
	Description string `json:"description"`

	StripeSessionID *string `json:"stripe_session_id,omitempty"`
}
