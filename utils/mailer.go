package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"outreachly/models"
)

// ErrProfileNotSendable is returned when a profile has no usable SMTP setup
var ErrProfileNotSendable = errors.New("sender profile has no SMTP configuration")

// Mailer delivers one composed email through a sender profile and returns
// the outbound Message-ID. A delivery failure is an error value, never a
// panic; the caller decides what to persist.
type Mailer interface {
	Send(profile *models.Profile, to, subject, body string) (messageID string, err error)
}

// SMTPMailer sends through the profile's own SMTP credentials
type SMTPMailer struct {
	// Domain used for generated Message-IDs
	MessageIDDomain string
}

func NewSMTPMailer(messageIDDomain string) *SMTPMailer {
	if messageIDDomain == "" {
		messageIDDomain = "outreachly.local"
	}
	return &SMTPMailer{MessageIDDomain: messageIDDomain}
}

func (m *SMTPMailer) Send(profile *models.Profile, to, subject, body string) (string, error) {
	if profile.SMTPHost == "" || profile.SMTPPort == 0 {
		return "", ErrProfileNotSendable
	}

	password, err := Decrypt(profile.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), m.MessageIDDomain)

	msg := gomail.NewMessage()
	from := profile.FromEmail
	if profile.FromName != "" {
		from = fmt.Sprintf("%s <%s>", profile.FromName, profile.FromEmail)
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody(bodyContentType(body), body)

	dialer := gomail.NewDialer(
		profile.SMTPHost,
		profile.SMTPPort,
		profile.SMTPUsername,
		password,
	)
	dialer.TLSConfig = &tls.Config{ServerName: profile.SMTPHost}

	if err := dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	return messageID, nil
}

func bodyContentType(body string) string {
	if strings.Contains(body, "<html") || strings.Contains(body, "<p>") {
		return "text/html"
	}
	return "text/plain"
}
