package models

import "gorm.io/gorm"

// Sequence statuses. Status is only ever changed by a user action.
const (
	SequenceStatusDraft    = "draft"
	SequenceStatusActive   = "active"
	SequenceStatusPaused   = "paused"
	SequenceStatusArchived = "archived"
)

// Tones for generated content
const (
	ToneCasual        = "casual"
	ToneProfessional  = "professional"
	ToneHyperPersonal = "hyper-personal"
)

// Lengths for generated content
const (
	LengthShort  = "short"
	LengthMedium = "medium"
)

// Sequence represents a reusable multi-step email drip campaign
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused, archived

	// Defaults applied when step content is generated
	Tone   string `gorm:"default:'casual'" json:"tone"`  // casual, professional, hyper-personal
	Length string `gorm:"default:'short'" json:"length"` // short, medium

	// Relations
	Steps       []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
	Enrollments []Enrollment   `gorm:"foreignKey:SequenceID" json:"enrollments,omitempty"`
}

// SequenceStep represents one timed position within a sequence. Steps are
// immutable once created except through the replace-all-steps operation.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber int `gorm:"not null" json:"step_number"` // 1-based, defines send order
	DelayDays  int `gorm:"not null" json:"delay_days"`  // from previous send, or enrollment for step 1

	// Business-hours send time
	SendTimeHour   int `gorm:"default:9" json:"send_time_hour"`
	SendTimeMinute int `gorm:"default:0" json:"send_time_minute"`

	// Optional canned content; when either is empty the step's email is
	// generated on demand from the prospect's fields.
	SubjectTemplate string `gorm:"type:text" json:"subject_template"`
	BodyTemplate    string `gorm:"type:text" json:"body_template"`

	// Follow-up steps get reply-style framing ("Re: ..." + preamble)
	IsFollowUp bool `gorm:"default:false" json:"is_follow_up"`
}
