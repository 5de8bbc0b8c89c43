package models

import (
	"time"

	"gorm.io/gorm"
)

// Prospect represents a single outreach contact
type Prospect struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Title     string `json:"title"`
	Website   string `json:"website"`
	LinkedIn  string `json:"linkedin_url"`
	Industry  string `json:"industry"`
	Notes     string `gorm:"type:text" json:"notes"`

	// Research summary attached by the enrichment pass, fed into content
	// generation as extra context.
	ResearchSummary string `gorm:"type:text" json:"research_summary"`

	// Status flags
	IsBounced      bool `gorm:"default:false" json:"is_bounced"`
	IsUnsubscribed bool `gorm:"default:false" json:"is_unsubscribed"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	Source          string     `json:"source"` // manual, csv, api
	LastContactedAt *time.Time `json:"last_contacted_at"`

	// Relations
	Enrollments []Enrollment `gorm:"foreignKey:ProspectID" json:"enrollments,omitempty"`
}

// FullName returns the prospect's display name, falling back to the email
// address when no name fields are set.
func (p *Prospect) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Email
}
