package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"outreachly/models"
	"outreachly/store"
)

// allowedTransitions is the enrollment state machine for user-driven
// status updates. Terminal statuses have no outgoing edges.
var allowedTransitions = map[string][]string{
	models.EnrollmentStatusActive: {
		models.EnrollmentStatusPaused,
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusReplied,
		models.EnrollmentStatusBounced,
		models.EnrollmentStatusUnsubscribed,
	},
	models.EnrollmentStatusPaused: {
		models.EnrollmentStatusActive,
	},
}

// ReplyHandler stops future sends for an enrollment the moment a reply or
// another terminal signal is observed. It is invoked out-of-band, never by
// the timer loop.
type ReplyHandler struct {
	store  store.Store
	logger *logrus.Logger

	clock func() time.Time
}

func NewReplyHandler(st store.Store, logger *logrus.Logger) *ReplyHandler {
	return &ReplyHandler{
		store:  st,
		logger: logger,
		clock:  time.Now,
	}
}

// MarkReplied moves an enrollment to the terminal replied status and
// cancels every not-yet-sent scheduled email. A reply is an external
// signal, so it lands regardless of whether the enrollment is active or
// paused; already-terminal enrollments are a no-op.
func (rh *ReplyHandler) MarkReplied(ctx context.Context, enrollmentID uint) error {
	enrollment, err := rh.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("enrollment %d not found: %w", enrollmentID, err)
	}

	if models.IsTerminalEnrollmentStatus(enrollment.Status) {
		rh.logger.WithFields(logrus.Fields{
			"enrollment_id": enrollmentID,
			"status":        enrollment.Status,
		}).Info("Enrollment already terminal, ignoring reply signal")
		return nil
	}

	now := rh.clock()
	if err := rh.store.UpdateEnrollment(ctx, enrollmentID, map[string]interface{}{
		"status":           models.EnrollmentStatusReplied,
		"replied_at":       now,
		"last_activity_at": now,
	}); err != nil {
		return fmt.Errorf("failed to mark enrollment %d replied: %w", enrollmentID, err)
	}

	return rh.cancelPending(ctx, enrollmentID)
}

// UpdateStatus is the general status-update path used by the API. It
// validates the transition and reuses the same cancellation routine for
// every terminal destination.
func (rh *ReplyHandler) UpdateStatus(ctx context.Context, enrollmentID uint, status string) error {
	enrollment, err := rh.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("enrollment %d not found: %w", enrollmentID, err)
	}

	if !transitionAllowed(enrollment.Status, status) {
		return fmt.Errorf("cannot transition enrollment from %s to %s", enrollment.Status, status)
	}

	now := rh.clock()
	fields := map[string]interface{}{
		"status":           status,
		"last_activity_at": now,
	}
	switch status {
	case models.EnrollmentStatusCompleted:
		fields["completed_at"] = now
	case models.EnrollmentStatusReplied:
		fields["replied_at"] = now
	}

	if err := rh.store.UpdateEnrollment(ctx, enrollmentID, fields); err != nil {
		return fmt.Errorf("failed to update enrollment %d: %w", enrollmentID, err)
	}

	if models.IsTerminalEnrollmentStatus(status) {
		return rh.cancelPending(ctx, enrollmentID)
	}
	return nil
}

// cancelPending cancels scheduled emails only. An email already in
// sending is allowed to complete or fail naturally, it is never yanked.
func (rh *ReplyHandler) cancelPending(ctx context.Context, enrollmentID uint) error {
	cancelled, err := rh.store.CancelScheduledEmails(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled emails for enrollment %d: %w", enrollmentID, err)
	}

	rh.logger.WithFields(logrus.Fields{
		"enrollment_id": enrollmentID,
		"cancelled":     cancelled,
	}).Info("Cancelled pending scheduled emails")
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
