package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"outreachly/models"
	"outreachly/store"
	"outreachly/utils"
)

// SchedulerStatus is the observability snapshot exposed over the API
type SchedulerStatus struct {
	Running    bool `json:"running"`
	Processing bool `json:"processing"`
}

// EmailScheduler is the single entry point for time-driven progression:
// a polling loop that sends due emails and drives enrollment advancement.
// Ticks never overlap; when a tick is still in flight the next one is
// skipped entirely rather than queued.
type EmailScheduler struct {
	store    store.Store
	mailer   utils.Mailer
	advancer *Advancer
	logger   *logrus.Logger

	interval    time.Duration
	sendTimeout time.Duration
	clock       func() time.Time

	running    atomic.Bool
	processing atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEmailScheduler(st store.Store, mailer utils.Mailer, advancer *Advancer, logger *logrus.Logger, interval time.Duration) *EmailScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &EmailScheduler{
		store:       st,
		mailer:      mailer,
		advancer:    advancer,
		logger:      logger,
		interval:    interval,
		sendTimeout: 2 * time.Minute,
		clock:       time.Now,
	}
}

// Start launches the polling loop. It fires one tick immediately, then on
// every interval. Returns false when the scheduler was already running.
func (s *EmailScheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.interval.String()).Info("Email scheduler started")

		s.ProcessDueEmails(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Email scheduler stopping...")
				return
			case <-ticker.C:
				s.ProcessDueEmails(ctx)
			}
		}
	}()

	return true
}

// Stop halts the loop and waits for an in-flight tick to finish. Returns
// false when the scheduler was not running.
func (s *EmailScheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("Email scheduler stopped")
	return true
}

func (s *EmailScheduler) Status() SchedulerStatus {
	return SchedulerStatus{
		Running:    s.running.Load(),
		Processing: s.processing.Load(),
	}
}

// ProcessDueEmails runs one tick: fetch everything due, send sequentially,
// advance enrollments on success. Guarded so overlapping invocations
// become no-ops instead of double-processing.
func (s *EmailScheduler) ProcessDueEmails(ctx context.Context) {
	if !s.processing.CompareAndSwap(false, true) {
		s.logger.Debug("Previous tick still in flight, skipping")
		return
	}
	defer s.processing.Store(false)

	now := s.clock()
	due, err := s.store.DueEmails(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to fetch due emails: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.WithField("count", len(due)).Info("Processing due emails")

	for i := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.processEmail(ctx, &due[i])
	}
}

// processEmail handles exactly one due email. Every failure mode is
// contained here: one bad email never aborts the tick.
func (s *EmailScheduler) processEmail(ctx context.Context, email *models.ScheduledEmail) {
	log := s.logger.WithFields(logrus.Fields{
		"email_id":      email.ID,
		"enrollment_id": email.EnrollmentID,
	})

	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			log.Errorf("Panic while processing email: %v", r)
			if err := s.store.MarkEmailFailed(ctx, email.ID, fmt.Sprintf("internal error: %v", r)); err != nil {
				log.Errorf("Failed to mark email failed after panic: %v", err)
			}
		}
	}()

	profile, profErr := s.store.SenderProfile(ctx, email.UserID)
	if profErr == nil && profile.DailyLimit > 0 && profile.SentToday >= profile.DailyLimit {
		// Leave the row scheduled; it becomes due again next tick once the
		// daily counter resets.
		log.Warn("Sender profile daily limit reached, deferring email")
		return
	}

	claimed, claimErr := s.store.ClaimEmail(ctx, email.ID)
	if claimErr != nil {
		log.Errorf("Failed to claim email: %v", claimErr)
		return
	}
	if !claimed {
		// Another processor instance got here first
		return
	}

	if s.mailer == nil {
		s.fail(ctx, log, email.ID, "email transport is not configured")
		return
	}

	prospect, perr := s.store.Prospect(ctx, email.ProspectID)
	if perr != nil {
		// Data error: log only, do not fail the tick
		log.Warnf("Prospect %d not found, skipping email: %v", email.ProspectID, perr)
		return
	}

	if profErr != nil {
		s.fail(ctx, log, email.ID, "no sender profile configured for this account")
		return
	}
	if profile.FromEmail == "" {
		s.fail(ctx, log, email.ID, "sender profile has no from address")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	messageID, sendErr := s.sendWithContext(sendCtx, profile, prospect.Email, email.Subject, email.Body)
	if sendErr != nil {
		s.fail(ctx, log, email.ID, sendErr.Error())
		return
	}

	sentAt := s.clock()
	if err := s.store.MarkEmailSent(ctx, email.ID, sentAt, messageID); err != nil {
		log.Errorf("Email delivered but status update failed: %v", err)
		return
	}
	if err := s.store.IncrementProfileSent(ctx, profile.ID); err != nil {
		log.Warnf("Failed to bump profile counters: %v", err)
	}

	log.WithField("to", prospect.Email).Info("Email sent")

	if err := s.advancer.Advance(ctx, email.EnrollmentID, email.StepID); err != nil {
		log.Errorf("Advancement failed: %v", err)
	}
}

// sendWithContext bounds a transport call so a hung vendor connection
// cannot stall the tick forever.
func (s *EmailScheduler) sendWithContext(ctx context.Context, profile *models.Profile, to, subject, body string) (string, error) {
	type result struct {
		messageID string
		err       error
	}

	ch := make(chan result, 1)
	go func() {
		id, err := s.mailer.Send(profile, to, subject, body)
		ch <- result{messageID: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("send timed out after %s", s.sendTimeout)
	case res := <-ch:
		return res.messageID, res.err
	}
}

func (s *EmailScheduler) fail(ctx context.Context, log *logrus.Entry, emailID uint, msg string) {
	log.Warnf("Email failed: %s", msg)
	if err := s.store.MarkEmailFailed(ctx, emailID, msg); err != nil {
		log.Errorf("Failed to persist failure: %v", err)
	}
}
