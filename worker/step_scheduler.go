package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"outreachly/models"
	"outreachly/store"
	"outreachly/utils"
)

// FollowUpPreamble is prepended to the body of every follow-up step
const FollowUpPreamble = "Just bumping this back to the top of your inbox in case it got buried.\n\n"

// StepScheduler turns a sequence step into a concrete, content-resolved
// ScheduledEmail with a future fire time.
type StepScheduler struct {
	store     store.Store
	generator utils.ContentGenerator
	logger    *logrus.Logger

	// clock is swappable for tests
	clock func() time.Time
}

func NewStepScheduler(st store.Store, generator utils.ContentGenerator, logger *logrus.Logger) *StepScheduler {
	return &StepScheduler{
		store:     st,
		generator: generator,
		logger:    logger,
		clock:     time.Now,
	}
}

// ScheduleInitialEmails schedules only the first step of a sequence for a
// freshly created enrollment. Later steps are scheduled one at a time by
// the advancer as sends complete.
func (ss *StepScheduler) ScheduleInitialEmails(ctx context.Context, enrollmentID, prospectID, sequenceID uint) error {
	sequence, err := ss.store.SequenceWithSteps(ctx, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to load sequence %d: %w", sequenceID, err)
	}
	if len(sequence.Steps) == 0 {
		return fmt.Errorf("sequence %d has no steps", sequenceID)
	}

	return ss.ScheduleStep(ctx, enrollmentID, prospectID, sequence, &sequence.Steps[0])
}

// ScheduleStep computes the step's send time, resolves its content and
// persists one ScheduledEmail in scheduled status. When content generation
// fails no record is created and the enrollment stalls at this step.
func (ss *StepScheduler) ScheduleStep(ctx context.Context, enrollmentID, prospectID uint, sequence *models.Sequence, step *models.SequenceStep) error {
	prospect, err := ss.store.Prospect(ctx, prospectID)
	if err != nil {
		ss.logger.WithFields(logrus.Fields{
			"enrollment_id": enrollmentID,
			"prospect_id":   prospectID,
		}).Warnf("Cannot schedule step: %v", err)
		return err
	}

	subject, body, err := ss.resolveContent(ctx, prospect, sequence, step)
	if err != nil {
		ss.logger.WithFields(logrus.Fields{
			"enrollment_id": enrollmentID,
			"step_number":   step.StepNumber,
		}).Errorf("Content generation failed, step not scheduled: %v", err)
		return err
	}

	if step.IsFollowUp && step.StepNumber > 1 {
		subject = "Re: " + subject
		body = FollowUpPreamble + body
	}

	sendAt := computeSendTime(ss.clock(), step.DelayDays, step.SendTimeHour, step.SendTimeMinute)

	email := &models.ScheduledEmail{
		EnrollmentID: enrollmentID,
		StepID:       step.ID,
		ProspectID:   prospectID,
		UserID:       sequence.UserID,
		Subject:      subject,
		Body:         body,
		ScheduledFor: sendAt,
		Status:       models.EmailStatusScheduled,
	}

	if err := ss.store.CreateScheduledEmail(ctx, email); err != nil {
		return fmt.Errorf("failed to persist scheduled email: %w", err)
	}

	ss.logger.WithFields(logrus.Fields{
		"enrollment_id": enrollmentID,
		"step_number":   step.StepNumber,
		"scheduled_for": sendAt,
	}).Info("Scheduled sequence step")
	return nil
}

func (ss *StepScheduler) resolveContent(ctx context.Context, prospect *models.Prospect, sequence *models.Sequence, step *models.SequenceStep) (string, string, error) {
	if step.SubjectTemplate != "" && step.BodyTemplate != "" {
		return step.SubjectTemplate, step.BodyTemplate, nil
	}

	if ss.generator == nil {
		return "", "", utils.ErrGeneratorUnconfigured
	}

	generated, err := ss.generator.Generate(ctx, utils.GenerationRequest{
		Prospect: prospect,
		Tone:     sequence.Tone,
		Length:   sequence.Length,
		OwnerID:  sequence.UserID,
	})
	if err != nil {
		return "", "", err
	}
	return generated.Subject, generated.Body, nil
}

// computeSendTime adds the step delay to now, pins the clock to the step's
// send time of day, and rolls forward until the result is in the future:
// a time already passed today slides to tomorrow, never backwards.
func computeSendTime(now time.Time, delayDays, hour, minute int) time.Time {
	target := now.AddDate(0, 0, delayDays)
	target = time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, now.Location())

	if target.After(now) {
		return target
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if today.After(now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}
