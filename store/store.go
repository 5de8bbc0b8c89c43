package store

import (
	"context"
	"time"

	"outreachly/models"
)

// Store is the persistence surface the scheduling workers run against.
// Controllers talk to gorm directly; the workers go through this interface
// so their state-machine logic can be exercised without a database.
type Store interface {
	// DueEmails returns every scheduled email whose fire time has passed,
	// oldest first.
	DueEmails(ctx context.Context, now time.Time) ([]models.ScheduledEmail, error)

	// ClaimEmail atomically moves a scheduled email to sending. It returns
	// false when the row was no longer in scheduled status, which makes
	// concurrent processors safe against double-sending.
	ClaimEmail(ctx context.Context, id uint) (bool, error)

	MarkEmailSent(ctx context.Context, id uint, sentAt time.Time, messageID string) error
	MarkEmailFailed(ctx context.Context, id uint, errMsg string) error

	CreateScheduledEmail(ctx context.Context, email *models.ScheduledEmail) error

	// CancelScheduledEmails cancels every email for the enrollment still in
	// scheduled status and returns how many rows it touched. Emails already
	// sending, sent or failed are left alone.
	CancelScheduledEmails(ctx context.Context, enrollmentID uint) (int64, error)

	Enrollment(ctx context.Context, id uint) (*models.Enrollment, error)
	UpdateEnrollment(ctx context.Context, id uint, fields map[string]interface{}) error

	// SequenceWithSteps loads a sequence with steps ordered by step number.
	SequenceWithSteps(ctx context.Context, id uint) (*models.Sequence, error)

	Prospect(ctx context.Context, id uint) (*models.Prospect, error)

	// SenderProfile resolves the from-address identity for a user's sends.
	SenderProfile(ctx context.Context, userID uint) (*models.Profile, error)
	IncrementProfileSent(ctx context.Context, profileID uint) error
}
