package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
)

// ReplyWorker polls every profile's IMAP inbox and matches incoming
// messages against sent emails by In-Reply-To header. A match marks the
// enrollment replied, which cancels all pending sends for it.
type ReplyWorker struct {
	db      *gorm.DB
	replies *ReplyHandler
	logger  *logrus.Logger

	interval time.Duration
}

func NewReplyWorker(db *gorm.DB, replies *ReplyHandler, logger *logrus.Logger, interval time.Duration) *ReplyWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReplyWorker{
		db:       db,
		replies:  replies,
		logger:   logger,
		interval: interval,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	rw.logger.Info("Reply worker started")

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("Reply worker shutting down...")
			return
		case <-ticker.C:
			rw.checkInboxes(ctx)
		}
	}
}

func (rw *ReplyWorker) checkInboxes(ctx context.Context) {
	var profiles []models.Profile
	if err := rw.db.Where("imap_host IS NOT NULL AND imap_host != ''").Find(&profiles).Error; err != nil {
		rw.logger.Errorf("Failed to fetch profiles for reply check: %v", err)
		return
	}

	for i := range profiles {
		if err := rw.checkProfileInbox(ctx, &profiles[i]); err != nil {
			rw.logger.WithField("profile_id", profiles[i].ID).Warnf("Inbox check failed: %v", err)
			rw.db.Model(&profiles[i]).Update("last_error", err.Error())
			continue
		}
		rw.db.Model(&profiles[i]).Updates(map[string]interface{}{
			"last_checked_at": time.Now(),
			"last_error":      nil,
		})
	}
}

func (rw *ReplyWorker) checkProfileInbox(ctx context.Context, profile *models.Profile) error {
	password, err := utils.Decrypt(profile.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", profile.IMAPHost, profile.IMAPPort)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("IMAP dial failed: %w", err)
	}
	defer c.Logout()

	username := profile.IMAPUsername
	if username == "" {
		username = profile.FromEmail
	}
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("IMAP login failed: %w", err)
	}

	mailbox := profile.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	if profile.LastCheckedAt != nil {
		criteria.Since = *profile.LastCheckedAt
	} else {
		criteria.Since = time.Now().Add(-24 * time.Hour)
	}

	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	for msg := range messages {
		if msg.Envelope == nil || msg.Envelope.InReplyTo == "" {
			continue
		}
		rw.handleIncoming(ctx, msg.Envelope.InReplyTo)
	}

	return <-done
}

// handleIncoming resolves an In-Reply-To header to the sent email that
// produced it and flags the owning enrollment as replied.
func (rw *ReplyWorker) handleIncoming(ctx context.Context, inReplyTo string) {
	var sent models.ScheduledEmail
	err := rw.db.Where("message_id = ? AND status = ?", inReplyTo, models.EmailStatusSent).
		First(&sent).Error
	if err != nil {
		return // not one of ours
	}

	rw.logger.WithFields(logrus.Fields{
		"enrollment_id": sent.EnrollmentID,
		"email_id":      sent.ID,
	}).Info("Reply detected")

	if err := rw.replies.MarkReplied(ctx, sent.EnrollmentID); err != nil {
		rw.logger.Errorf("Failed to mark enrollment %d replied: %v", sent.EnrollmentID, err)
	}
}
