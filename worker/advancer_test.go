package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreachly/models"
)

func newAdvancer(st *memStore) *Advancer {
	logger := testLogger()
	return NewAdvancer(st, NewStepScheduler(st, nil, logger), logger)
}

func seedAdvancement(st *memStore, status string) (*models.Enrollment, *models.Sequence) {
	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps: []models.SequenceStep{
			{StepNumber: 1, SendTimeHour: 9, SubjectTemplate: "One", BodyTemplate: "First"},
			{StepNumber: 2, DelayDays: 3, SendTimeHour: 9, SubjectTemplate: "Two", BodyTemplate: "Second"},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{
		SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1,
		Status: status, CurrentStepNumber: 1,
	})
	return enrollment, seq
}

func TestAdvanceSchedulesNextStep(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)

	enrollment, seq := seedAdvancement(st, models.EnrollmentStatusActive)

	err := adv.Advance(context.Background(), enrollment.ID, seq.Steps[0].ID)
	require.NoError(t, err)

	updated := st.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, updated.Status)
	assert.Equal(t, 2, updated.CurrentStepNumber)
	require.NotNil(t, updated.LastActivityAt)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1, "exactly one pending step per enrollment")
	assert.Equal(t, "Two", emails[0].Subject)
	assert.Equal(t, models.EmailStatusScheduled, emails[0].Status)
}

func TestAdvanceLastStepCompletes(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)

	enrollment, seq := seedAdvancement(st, models.EnrollmentStatusActive)

	err := adv.Advance(context.Background(), enrollment.ID, seq.Steps[1].ID)
	require.NoError(t, err)

	updated := st.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.Empty(t, st.emailsForEnrollment(enrollment.ID), "completion schedules nothing")
}

func TestAdvanceUnknownStepCompletes(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)

	enrollment, _ := seedAdvancement(st, models.EnrollmentStatusActive)

	// Step ID from a replaced step list no longer resolves
	err := adv.Advance(context.Background(), enrollment.ID, 9999)
	require.NoError(t, err)

	updated := st.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
}

func TestAdvanceCompletionIsIdempotent(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)

	enrollment, seq := seedAdvancement(st, models.EnrollmentStatusActive)

	require.NoError(t, adv.Advance(context.Background(), enrollment.ID, seq.Steps[1].ID))
	first := st.enrollment(enrollment.ID)
	require.NotNil(t, first.CompletedAt)

	// A second advancement lands on a non-active enrollment and no-ops
	require.NoError(t, adv.Advance(context.Background(), enrollment.ID, seq.Steps[1].ID))
	second := st.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Empty(t, st.emailsForEnrollment(enrollment.ID))
}

func TestAdvanceSkipsNonActiveEnrollment(t *testing.T) {
	for _, status := range []string{
		models.EnrollmentStatusPaused,
		models.EnrollmentStatusReplied,
		models.EnrollmentStatusBounced,
		models.EnrollmentStatusUnsubscribed,
	} {
		t.Run(status, func(t *testing.T) {
			st := newMemStore()
			adv := newAdvancer(st)

			enrollment, seq := seedAdvancement(st, status)

			err := adv.Advance(context.Background(), enrollment.ID, seq.Steps[0].ID)
			require.NoError(t, err)

			updated := st.enrollment(enrollment.ID)
			assert.Equal(t, status, updated.Status, "non-active enrollment must not move")
			assert.Equal(t, 1, updated.CurrentStepNumber)
			assert.Empty(t, st.emailsForEnrollment(enrollment.ID))
		})
	}
}

func TestAdvanceMissingEnrollmentIsSilent(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)

	// Vanished row is a data error: logged, never surfaced
	err := adv.Advance(context.Background(), 42, 1)
	assert.NoError(t, err)
}

func TestAdvanceUsesInjectedClock(t *testing.T) {
	st := newMemStore()
	adv := newAdvancer(st)
	frozen := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	adv.clock = fixedClock(frozen)

	enrollment, seq := seedAdvancement(st, models.EnrollmentStatusActive)

	require.NoError(t, adv.Advance(context.Background(), enrollment.ID, seq.Steps[1].ID))

	updated := st.enrollment(enrollment.ID)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, frozen, *updated.CompletedAt)
}
