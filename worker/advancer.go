package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"outreachly/models"
	"outreachly/store"
)

// Advancer decides what happens to an enrollment after one of its steps
// has been sent: schedule the next step, or mark the enrollment completed.
type Advancer struct {
	store  store.Store
	steps  *StepScheduler
	logger *logrus.Logger

	clock func() time.Time
}

func NewAdvancer(st store.Store, steps *StepScheduler, logger *logrus.Logger) *Advancer {
	return &Advancer{
		store:  st,
		steps:  steps,
		logger: logger,
		clock:  time.Now,
	}
}

// Advance is invoked after the step with completedStepID was sent. The
// enrollment is re-fetched first: one paused or terminated between send
// and advancement must not continue. Only one step is ever pending per
// enrollment, so this is the sole mechanism of sequence progression.
func (a *Advancer) Advance(ctx context.Context, enrollmentID, completedStepID uint) error {
	enrollment, err := a.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		a.logger.Warnf("Advance: enrollment %d not found: %v", enrollmentID, err)
		return nil
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		a.logger.WithFields(logrus.Fields{
			"enrollment_id": enrollmentID,
			"status":        enrollment.Status,
		}).Info("Enrollment no longer active, not advancing")
		return nil
	}

	sequence, err := a.store.SequenceWithSteps(ctx, enrollment.SequenceID)
	if err != nil {
		a.logger.Warnf("Advance: sequence %d not found for enrollment %d: %v", enrollment.SequenceID, enrollmentID, err)
		return nil
	}

	completedIdx := -1
	for i := range sequence.Steps {
		if sequence.Steps[i].ID == completedStepID {
			completedIdx = i
			break
		}
	}

	// Unknown step is treated like the last one
	if completedIdx == -1 || completedIdx == len(sequence.Steps)-1 {
		return a.complete(ctx, enrollmentID)
	}

	next := &sequence.Steps[completedIdx+1]
	now := a.clock()
	if err := a.store.UpdateEnrollment(ctx, enrollmentID, map[string]interface{}{
		"current_step_number": next.StepNumber,
		"last_activity_at":    now,
	}); err != nil {
		return fmt.Errorf("failed to advance enrollment %d: %w", enrollmentID, err)
	}

	return a.steps.ScheduleStep(ctx, enrollmentID, enrollment.ProspectID, sequence, next)
}

func (a *Advancer) complete(ctx context.Context, enrollmentID uint) error {
	now := a.clock()
	if err := a.store.UpdateEnrollment(ctx, enrollmentID, map[string]interface{}{
		"status":           models.EnrollmentStatusCompleted,
		"completed_at":     now,
		"last_activity_at": now,
	}); err != nil {
		return fmt.Errorf("failed to complete enrollment %d: %w", enrollmentID, err)
	}

	a.logger.WithField("enrollment_id", enrollmentID).Info("Enrollment completed")
	return nil
}
