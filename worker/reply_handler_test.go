package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreachly/models"
)

func seedReplyScenario(st *memStore, status string) *models.Enrollment {
	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps:  []models.SequenceStep{{StepNumber: 1, SendTimeHour: 9, SubjectTemplate: "One", BodyTemplate: "First"}},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	return st.addEnrollment(models.Enrollment{
		SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1, Status: status,
	})
}

func TestMarkRepliedCancelsOnlyScheduledEmails(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())

	enrollment := seedReplyScenario(st, models.EnrollmentStatusActive)

	pending1 := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "a", Body: "a", ScheduledFor: time.Now().Add(time.Hour)})
	pending2 := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "b", Body: "b", ScheduledFor: time.Now().Add(2 * time.Hour)})
	inFlight := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "c", Body: "c", ScheduledFor: time.Now(), Status: models.EmailStatusSending})
	delivered := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "d", Body: "d", ScheduledFor: time.Now().Add(-time.Hour), Status: models.EmailStatusSent})

	require.NoError(t, rh.MarkReplied(context.Background(), enrollment.ID))

	updated := st.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusReplied, updated.Status)
	require.NotNil(t, updated.RepliedAt)

	assert.Equal(t, models.EmailStatusCancelled, st.email(pending1.ID).Status)
	assert.Equal(t, models.EmailStatusCancelled, st.email(pending2.ID).Status)
	assert.Equal(t, models.EmailStatusSending, st.email(inFlight.ID).Status, "in-flight sends are never yanked")
	assert.Equal(t, models.EmailStatusSent, st.email(delivered.ID).Status)
}

func TestMarkRepliedFromPaused(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())

	enrollment := seedReplyScenario(st, models.EnrollmentStatusPaused)

	require.NoError(t, rh.MarkReplied(context.Background(), enrollment.ID))
	assert.Equal(t, models.EnrollmentStatusReplied, st.enrollment(enrollment.ID).Status)
}

func TestMarkRepliedOnTerminalEnrollmentIsNoOp(t *testing.T) {
	for _, status := range []string{
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusReplied,
		models.EnrollmentStatusBounced,
		models.EnrollmentStatusUnsubscribed,
	} {
		t.Run(status, func(t *testing.T) {
			st := newMemStore()
			rh := NewReplyHandler(st, testLogger())

			enrollment := seedReplyScenario(st, status)

			require.NoError(t, rh.MarkReplied(context.Background(), enrollment.ID))

			updated := st.enrollment(enrollment.ID)
			assert.Equal(t, status, updated.Status, "terminal status must not change")
			assert.Nil(t, updated.RepliedAt)
		})
	}
}

func TestMarkRepliedMissingEnrollment(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())

	err := rh.MarkReplied(context.Background(), 42)
	assert.Error(t, err)
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{models.EnrollmentStatusActive, models.EnrollmentStatusPaused, true},
		{models.EnrollmentStatusActive, models.EnrollmentStatusCompleted, true},
		{models.EnrollmentStatusActive, models.EnrollmentStatusReplied, true},
		{models.EnrollmentStatusActive, models.EnrollmentStatusBounced, true},
		{models.EnrollmentStatusActive, models.EnrollmentStatusUnsubscribed, true},
		{models.EnrollmentStatusPaused, models.EnrollmentStatusActive, true},
		{models.EnrollmentStatusPaused, models.EnrollmentStatusCompleted, false},
		{models.EnrollmentStatusCompleted, models.EnrollmentStatusActive, false},
		{models.EnrollmentStatusReplied, models.EnrollmentStatusActive, false},
		{models.EnrollmentStatusBounced, models.EnrollmentStatusActive, false},
		{models.EnrollmentStatusUnsubscribed, models.EnrollmentStatusPaused, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			st := newMemStore()
			rh := NewReplyHandler(st, testLogger())

			enrollment := seedReplyScenario(st, tt.from)

			err := rh.UpdateStatus(context.Background(), enrollment.ID, tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, st.enrollment(enrollment.ID).Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, st.enrollment(enrollment.ID).Status)
			}
		})
	}
}

func TestUpdateStatusTerminalCancelsPending(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())

	enrollment := seedReplyScenario(st, models.EnrollmentStatusActive)
	pending := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "a", Body: "a", ScheduledFor: time.Now().Add(time.Hour)})

	require.NoError(t, rh.UpdateStatus(context.Background(), enrollment.ID, models.EnrollmentStatusUnsubscribed))

	assert.Equal(t, models.EmailStatusCancelled, st.email(pending.ID).Status)
}

func TestUpdateStatusPauseKeepsPendingEmails(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())

	enrollment := seedReplyScenario(st, models.EnrollmentStatusActive)
	pending := st.addEmail(models.ScheduledEmail{EnrollmentID: enrollment.ID, UserID: 1, Subject: "a", Body: "a", ScheduledFor: time.Now().Add(time.Hour)})

	require.NoError(t, rh.UpdateStatus(context.Background(), enrollment.ID, models.EnrollmentStatusPaused))

	// Pause is not terminal: the pending email survives
	assert.Equal(t, models.EmailStatusScheduled, st.email(pending.ID).Status)
}

func TestUpdateStatusSetsTimestamps(t *testing.T) {
	st := newMemStore()
	rh := NewReplyHandler(st, testLogger())
	frozen := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	rh.clock = fixedClock(frozen)

	enrollment := seedReplyScenario(st, models.EnrollmentStatusActive)

	require.NoError(t, rh.UpdateStatus(context.Background(), enrollment.ID, models.EnrollmentStatusCompleted))

	updated := st.enrollment(enrollment.ID)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, frozen, *updated.CompletedAt)
	require.NotNil(t, updated.LastActivityAt)
	assert.Equal(t, frozen, *updated.LastActivityAt)
	assert.Nil(t, updated.RepliedAt)
}
