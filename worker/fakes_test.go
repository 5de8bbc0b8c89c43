package worker

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"outreachly/models"
	"outreachly/store"
	"outreachly/utils"
)

// memStore is an in-memory Store used to exercise the workers without a
// database. All mutations happen under one mutex, so concurrent ticks see
// the same ordering guarantees the real store gives.
type memStore struct {
	mu sync.Mutex

	emails      map[uint]*models.ScheduledEmail
	enrollments map[uint]*models.Enrollment
	sequences   map[uint]*models.Sequence
	prospects   map[uint]*models.Prospect
	profiles    map[uint]*models.Profile // keyed by user ID

	nextID uint

	dueErr error
}

func newMemStore() *memStore {
	return &memStore{
		emails:      make(map[uint]*models.ScheduledEmail),
		enrollments: make(map[uint]*models.Enrollment),
		sequences:   make(map[uint]*models.Sequence),
		prospects:   make(map[uint]*models.Prospect),
		profiles:    make(map[uint]*models.Profile),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) addSequence(seq models.Sequence) *models.Sequence {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq.ID = m.id()
	for i := range seq.Steps {
		seq.Steps[i].ID = m.id()
		seq.Steps[i].SequenceID = seq.ID
	}
	m.sequences[seq.ID] = &seq
	return &seq
}

func (m *memStore) addEnrollment(e models.Enrollment) *models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.Status == "" {
		e.Status = models.EnrollmentStatusActive
	}
	m.enrollments[e.ID] = &e
	return &e
}

func (m *memStore) addProspect(p models.Prospect) *models.Prospect {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.prospects[p.ID] = &p
	return &p
}

func (m *memStore) addProfile(p models.Profile) *models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.profiles[p.UserID] = &p
	return &p
}

func (m *memStore) addEmail(e models.ScheduledEmail) *models.ScheduledEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.Status == "" {
		e.Status = models.EmailStatusScheduled
	}
	m.emails[e.ID] = &e
	return &e
}

func (m *memStore) email(id uint) models.ScheduledEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.emails[id]
}

func (m *memStore) enrollment(id uint) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.enrollments[id]
}

func (m *memStore) emailsForEnrollment(enrollmentID uint) []models.ScheduledEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledEmail
	for _, e := range m.emails {
		if e.EnrollmentID == enrollmentID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) DueEmails(_ context.Context, now time.Time) ([]models.ScheduledEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	var due []models.ScheduledEmail
	for _, e := range m.emails {
		if e.Status == models.EmailStatusScheduled && !e.ScheduledFor.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	return due, nil
}

func (m *memStore) ClaimEmail(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.Status != models.EmailStatusScheduled {
		return false, nil
	}
	e.Status = models.EmailStatusSending
	return true, nil
}

func (m *memStore) MarkEmailSent(_ context.Context, id uint, sentAt time.Time, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Status = models.EmailStatusSent
	e.SentAt = &sentAt
	e.MessageID = messageID
	return nil
}

func (m *memStore) MarkEmailFailed(_ context.Context, id uint, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Status = models.EmailStatusFailed
	e.ErrorMessage = errMsg
	return nil
}

func (m *memStore) CreateScheduledEmail(_ context.Context, email *models.ScheduledEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email.ID = m.id()
	if email.Status == "" {
		email.Status = models.EmailStatusScheduled
	}
	clone := *email
	m.emails[email.ID] = &clone
	return nil
}

func (m *memStore) CancelScheduledEmails(_ context.Context, enrollmentID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.emails {
		if e.EnrollmentID == enrollmentID && e.Status == models.EmailStatusScheduled {
			e.Status = models.EmailStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memStore) Enrollment(_ context.Context, id uint) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *memStore) UpdateEnrollment(_ context.Context, id uint, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			e.Status = v.(string)
		case "current_step_number":
			e.CurrentStepNumber = v.(int)
		case "last_activity_at":
			t := v.(time.Time)
			e.LastActivityAt = &t
		case "completed_at":
			t := v.(time.Time)
			e.CompletedAt = &t
		case "replied_at":
			t := v.(time.Time)
			e.RepliedAt = &t
		}
	}
	return nil
}

func (m *memStore) SequenceWithSteps(_ context.Context, id uint) (*models.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sequences[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *s
	clone.Steps = append([]models.SequenceStep(nil), s.Steps...)
	sort.Slice(clone.Steps, func(i, j int) bool { return clone.Steps[i].StepNumber < clone.Steps[j].StepNumber })
	return &clone, nil
}

func (m *memStore) Prospect(_ context.Context, id uint) (*models.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memStore) SenderProfile(_ context.Context, userID uint) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memStore) IncrementProfileSent(_ context.Context, profileID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID == profileID {
			p.SentToday++
			p.TotalSent++
			return nil
		}
	}
	return store.ErrNotFound
}

var _ store.Store = (*memStore)(nil)

type sendCall struct {
	to      string
	subject string
	body    string
}

// fakeMailer records sends and can be told to fail or stall
type fakeMailer struct {
	mu    sync.Mutex
	calls []sendCall

	err   error
	delay time.Duration
}

func (f *fakeMailer) Send(_ *models.Profile, to, subject, body string) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, sendCall{to: to, subject: subject, body: body})
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "<test@fake>", nil
}

func (f *fakeMailer) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeGenerator returns canned content or a configured error
type fakeGenerator struct {
	mu    sync.Mutex
	calls int

	subject string
	body    string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, _ utils.GenerationRequest) (*utils.GeneratedEmail, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &utils.GeneratedEmail{Subject: f.subject, Body: f.body}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
