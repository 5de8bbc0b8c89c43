package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name     string `json:"name"`
	Company  string `json:"company"`
	Timezone string `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// Credit-based plan information
	PlanName        string `gorm:"default:'free'" json:"plan_name"`  // free, starter, grow, enterprise
	EmailCredits    int    `gorm:"default:500" json:"email_credits"` // free credits for new users
	CreditsConsumed int    `gorm:"default:0" json:"credits_consumed"`

	// Stripe integration
	StripeCustomerID *string `gorm:"index" json:"stripe_customer_id,omitempty"`

	// Relations
	Profiles     []Profile           `gorm:"foreignKey:UserID" json:"profiles,omitempty"`
	Sequences    []Sequence          `gorm:"foreignKey:UserID" json:"sequences,omitempty"`
	Prospects    []Prospect          `gorm:"foreignKey:UserID" json:"prospects,omitempty"`
	Transactions []CreditTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}

// Profile represents a sending identity: the from address plus the SMTP
// credentials used to deliver through it and the IMAP credentials used to
// watch its inbox for replies.
type Profile struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	FromEmail string `gorm:"not null" json:"from_email"`
	FromName  string `json:"from_name"`
	IsDefault bool   `gorm:"default:false" json:"is_default"`

	// SMTP configuration
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `gorm:"default:587" json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"` // Encrypted in application layer

	// IMAP configuration (reply detection)
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `gorm:"default:993" json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"` // Encrypted in application layer
	IMAPMailbox  string `gorm:"default:'INBOX'" json:"imap_mailbox"`

	// Usage metrics
	DailyLimit int `gorm:"default:500" json:"daily_limit"`
	SentToday  int `gorm:"default:0" json:"sent_today"`
	TotalSent  int `gorm:"default:0" json:"total_sent"`

	LastError     *string    `json:"last_error"`
	LastCheckedAt *time.Time `json:"last_checked_at"` // last IMAP poll
}

// Sanitize clears credential fields before returning a profile to clients
func (p *Profile) Sanitize() {
	p.SMTPPassword = ""
	p.IMAPPassword = ""
}
