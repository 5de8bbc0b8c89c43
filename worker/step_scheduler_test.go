package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreachly/models"
	"outreachly/utils"
)

func TestComputeSendTime(t *testing.T) {
	// Tuesday 10:30 local
	now := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		delayDays int
		hour      int
		minute    int
		want      time.Time
	}{
		{
			name: "no delay, send time later today",
			hour: 14, minute: 0,
			want: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		},
		{
			name: "no delay, send time already passed rolls to tomorrow",
			hour: 9, minute: 0,
			want: time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name:      "three day delay pins time of day",
			delayDays: 3,
			hour:      9, minute: 15,
			want: time.Date(2025, 6, 13, 9, 15, 0, 0, time.UTC),
		},
		{
			name:      "delayed target in the past still moves forward",
			delayDays: 0,
			hour:      10, minute: 30,
			// exactly now is not in the future
			want: time.Date(2025, 6, 11, 10, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeSendTime(now, tt.delayDays, tt.hour, tt.minute)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(now), "send time must be in the future")
		})
	}
}

func TestScheduleStepUsesTemplatesVerbatim(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{subject: "should not be used", body: "should not be used"}
	ss := NewStepScheduler(st, gen, testLogger())

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	ss.clock = fixedClock(now)

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Status: models.SequenceStatusActive,
		Steps: []models.SequenceStep{
			{StepNumber: 1, DelayDays: 0, SendTimeHour: 9, SubjectTemplate: "Quick question", BodyTemplate: "Hi {{name}}"},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[0])
	require.NoError(t, err)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1)
	assert.Equal(t, "Quick question", emails[0].Subject)
	assert.Equal(t, "Hi {{name}}", emails[0].Body)
	assert.Equal(t, models.EmailStatusScheduled, emails[0].Status)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), emails[0].ScheduledFor)
	assert.Zero(t, gen.calls, "templates present, generator must not be called")
}

func TestScheduleStepGeneratesContentWhenTemplateMissing(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{subject: "Generated subject", body: "Generated body"}
	ss := NewStepScheduler(st, gen, testLogger())
	ss.clock = fixedClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps: []models.SequenceStep{
			{StepNumber: 1, SendTimeHour: 9},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[0])
	require.NoError(t, err)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1)
	assert.Equal(t, "Generated subject", emails[0].Subject)
	assert.Equal(t, "Generated body", emails[0].Body)
	assert.Equal(t, 1, gen.calls)
}

func TestScheduleStepFollowUpDecoration(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{subject: "Checking in", body: "Any thoughts?"}
	ss := NewStepScheduler(st, gen, testLogger())
	ss.clock = fixedClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps: []models.SequenceStep{
			{StepNumber: 1, SendTimeHour: 9},
			{StepNumber: 2, DelayDays: 3, SendTimeHour: 9, IsFollowUp: true},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[1])
	require.NoError(t, err)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1)
	assert.Equal(t, "Re: Checking in", emails[0].Subject)
	assert.Equal(t, FollowUpPreamble+"Any thoughts?", emails[0].Body)
}

func TestScheduleStepNoFollowUpDecorationOnFirstStep(t *testing.T) {
	st := newMemStore()
	ss := NewStepScheduler(st, nil, testLogger())
	ss.clock = fixedClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))

	// IsFollowUp set on step 1 must not produce reply framing
	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps: []models.SequenceStep{
			{StepNumber: 1, SendTimeHour: 9, IsFollowUp: true, SubjectTemplate: "Hello", BodyTemplate: "Intro"},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[0])
	require.NoError(t, err)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1)
	assert.Equal(t, "Hello", emails[0].Subject)
	assert.Equal(t, "Intro", emails[0].Body)
}

func TestScheduleStepGeneratorFailureCreatesNothing(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{err: errors.New("rate limited")}
	ss := NewStepScheduler(st, gen, testLogger())

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps:  []models.SequenceStep{{StepNumber: 1, SendTimeHour: 9}},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[0])
	require.Error(t, err)
	assert.Empty(t, st.emailsForEnrollment(enrollment.ID), "failed generation must not leave a record")
}

func TestScheduleStepWithoutGeneratorConfigured(t *testing.T) {
	st := newMemStore()
	ss := NewStepScheduler(st, nil, testLogger())

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps:  []models.SequenceStep{{StepNumber: 1, SendTimeHour: 9}},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleStep(context.Background(), enrollment.ID, prospect.ID, seq, &seq.Steps[0])
	require.ErrorIs(t, err, utils.ErrGeneratorUnconfigured)
	assert.Empty(t, st.emailsForEnrollment(enrollment.ID))
}

func TestScheduleInitialEmailsSchedulesOnlyFirstStep(t *testing.T) {
	st := newMemStore()
	ss := NewStepScheduler(st, nil, testLogger())
	ss.clock = fixedClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))

	seq := st.addSequence(models.Sequence{
		UserID: 1,
		Steps: []models.SequenceStep{
			{StepNumber: 1, SendTimeHour: 9, SubjectTemplate: "One", BodyTemplate: "First"},
			{StepNumber: 2, DelayDays: 3, SendTimeHour: 9, SubjectTemplate: "Two", BodyTemplate: "Second"},
		},
	})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleInitialEmails(context.Background(), enrollment.ID, prospect.ID, seq.ID)
	require.NoError(t, err)

	emails := st.emailsForEnrollment(enrollment.ID)
	require.Len(t, emails, 1, "only the first step may be pending")
	assert.Equal(t, "One", emails[0].Subject)
}

func TestScheduleInitialEmailsEmptySequence(t *testing.T) {
	st := newMemStore()
	ss := NewStepScheduler(st, nil, testLogger())

	seq := st.addSequence(models.Sequence{UserID: 1})
	prospect := st.addProspect(models.Prospect{UserID: 1, Email: "jane@acme.com"})
	enrollment := st.addEnrollment(models.Enrollment{SequenceID: seq.ID, ProspectID: prospect.ID, UserID: 1})

	err := ss.ScheduleInitialEmails(context.Background(), enrollment.ID, prospect.ID, seq.ID)
	require.Error(t, err)
}
