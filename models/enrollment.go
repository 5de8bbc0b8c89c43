package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. completed, replied, bounced and unsubscribed are
// terminal: no transition ever leaves them.
const (
	EnrollmentStatusActive       = "active"
	EnrollmentStatusPaused       = "paused"
	EnrollmentStatusCompleted    = "completed"
	EnrollmentStatusReplied      = "replied"
	EnrollmentStatusBounced      = "bounced"
	EnrollmentStatusUnsubscribed = "unsubscribed"
)

// IsTerminalEnrollmentStatus reports whether status permits no further
// transitions.
func IsTerminalEnrollmentStatus(status string) bool {
	switch status {
	case EnrollmentStatusCompleted, EnrollmentStatusReplied,
		EnrollmentStatusBounced, EnrollmentStatusUnsubscribed:
		return true
	}
	return false
}

// Enrollment binds one prospect to one sequence and tracks progress
type Enrollment struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	ProspectID uint `gorm:"not null;index" json:"prospect_id"`
	UserID     uint `gorm:"not null;index" json:"user_id"`

	Status            string `gorm:"default:'active';index" json:"status"`
	CurrentStepNumber int    `gorm:"default:1" json:"current_step_number"`

	LastActivityAt *time.Time `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	RepliedAt      *time.Time `json:"replied_at"`

	// Relations
	Sequence        Sequence         `json:"-"`
	Prospect        Prospect         `json:"prospect,omitempty"`
	ScheduledEmails []ScheduledEmail `gorm:"foreignKey:EnrollmentID" json:"scheduled_emails,omitempty"`
}

// ScheduledEmail statuses. Transitions are one-directional:
// scheduled -> sending -> {sent, failed}, or scheduled -> cancelled.
// A sending email is never cancelled mid-flight.
const (
	EmailStatusScheduled = "scheduled"
	EmailStatusSending   = "sending"
	EmailStatusSent      = "sent"
	EmailStatusFailed    = "failed"
	EmailStatusCancelled = "cancelled"
)

// ScheduledEmail is a concrete, time-bound unit of send work for one step
// of one enrollment. Subject and body hold fully resolved text, never a
// template. Failed and cancelled emails are not retried or recreated.
type ScheduledEmail struct {
	gorm.Model
	EnrollmentID uint `gorm:"not null;index" json:"enrollment_id"`
	StepID       uint `gorm:"not null;index" json:"step_id"`
	ProspectID   uint `gorm:"not null;index" json:"prospect_id"`
	UserID       uint `gorm:"not null;index" json:"user_id"`

	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`

	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`
	Status       string     `gorm:"default:'scheduled';index" json:"status"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `json:"error_message"`

	// Outbound Message-ID header, matched against In-Reply-To by the
	// reply detection worker.
	MessageID string `gorm:"index" json:"message_id"`
}
