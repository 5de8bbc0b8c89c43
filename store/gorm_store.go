package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"outreachly/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// GormStore implements Store on top of a gorm Postgres connection
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DueEmails(ctx context.Context, now time.Time) ([]models.ScheduledEmail, error) {
	var emails []models.ScheduledEmail
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.EmailStatusScheduled, now).
		Order("scheduled_for ASC").
		Find(&emails).Error
	return emails, err
}

func (s *GormStore) ClaimEmail(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ScheduledEmail{}).
		Where("id = ? AND status = ?", id, models.EmailStatusScheduled).
		Update("status", models.EmailStatusSending)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MarkEmailSent(ctx context.Context, id uint, sentAt time.Time, messageID string) error {
	return s.db.WithContext(ctx).Model(&models.ScheduledEmail{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.EmailStatusSent,
			"sent_at":    sentAt,
			"message_id": messageID,
		}).Error
}

func (s *GormStore) MarkEmailFailed(ctx context.Context, id uint, errMsg string) error {
	return s.db.WithContext(ctx).Model(&models.ScheduledEmail{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.EmailStatusFailed,
			"error_message": errMsg,
		}).Error
}

func (s *GormStore) CreateScheduledEmail(ctx context.Context, email *models.ScheduledEmail) error {
	return s.db.WithContext(ctx).Create(email).Error
}

func (s *GormStore) CancelScheduledEmails(ctx context.Context, enrollmentID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ScheduledEmail{}).
		Where("enrollment_id = ? AND status = ?", enrollmentID, models.EmailStatusScheduled).
		Update("status", models.EmailStatusCancelled)
	return res.RowsAffected, res.Error
}

func (s *GormStore) Enrollment(ctx context.Context, id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.db.WithContext(ctx).First(&enrollment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

func (s *GormStore) UpdateEnrollment(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *GormStore) SequenceWithSteps(ctx context.Context, id uint) (*models.Sequence, error) {
	var sequence models.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		First(&sequence, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sequence, nil
}

func (s *GormStore) Prospect(ctx context.Context, id uint) (*models.Prospect, error) {
	var prospect models.Prospect
	if err := s.db.WithContext(ctx).First(&prospect, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prospect, nil
}

func (s *GormStore) SenderProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, id ASC").
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) IncrementProfileSent(ctx context.Context, profileID uint) error {
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profileID).
		Updates(map[string]interface{}{
			"sent_today": gorm.Expr("sent_today + ?", 1),
			"total_sent": gorm.Expr("total_sent + ?", 1),
		}).Error
}
