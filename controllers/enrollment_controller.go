package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
	"outreachly/worker"
)

type EnrollmentController struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Scheduler *worker.EmailScheduler
	Steps     *worker.StepScheduler
	Replies   *worker.ReplyHandler
}

func NewEnrollmentController(db *gorm.DB, logger *logrus.Logger, scheduler *worker.EmailScheduler, steps *worker.StepScheduler, replies *worker.ReplyHandler) *EnrollmentController {
	return &EnrollmentController{
		DB:        db,
		Logger:    logger,
		Scheduler: scheduler,
		Steps:     steps,
		Replies:   replies,
	}
}

// EnrollProspects binds a batch of prospects to a sequence. One email
// credit is consumed per prospect up front; each enrollment gets only its
// first step scheduled, later steps follow as sends complete.
func (ec *EnrollmentController) EnrollProspects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		SequenceID  uint   `json:"sequence_id" validate:"required"`
		ProspectIDs []uint `json:"prospect_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var sequence models.Sequence
	if err := ec.DB.Where("id = ? AND user_id = ?", input.SequenceID, user.ID).
		Preload("Steps").First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}
	if sequence.Status != models.SequenceStatusActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sequence must be active before enrolling prospects",
		})
	}
	if len(sequence.Steps) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sequence has no steps",
		})
	}

	if user.EmailCredits < len(input.ProspectIDs) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":     "Not enough email credits",
			"required":  len(input.ProspectIDs),
			"available": user.EmailCredits,
		})
	}

	var prospects []models.Prospect
	if err := ec.DB.Where("id IN ? AND user_id = ?", input.ProspectIDs, user.ID).
		Find(&prospects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load prospects",
		})
	}
	if len(prospects) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No matching prospects found",
		})
	}

	var enrolled []models.Enrollment
	var skipped []fiber.Map

	for i := range prospects {
		prospect := &prospects[i]

		if prospect.IsBounced || prospect.IsUnsubscribed || prospect.IsDoNotContact {
			skipped = append(skipped, fiber.Map{
				"prospect_id": prospect.ID,
				"reason":      "prospect is not contactable",
			})
			continue
		}

		var existing int64
		ec.DB.Model(&models.Enrollment{}).
			Where("sequence_id = ? AND prospect_id = ? AND status IN ?",
				sequence.ID, prospect.ID,
				[]string{models.EnrollmentStatusActive, models.EnrollmentStatusPaused}).
			Count(&existing)
		if existing > 0 {
			skipped = append(skipped, fiber.Map{
				"prospect_id": prospect.ID,
				"reason":      "already enrolled in this sequence",
			})
			continue
		}

		enrollment := models.Enrollment{
			SequenceID:        sequence.ID,
			ProspectID:        prospect.ID,
			UserID:            user.ID,
			Status:            models.EnrollmentStatusActive,
			CurrentStepNumber: 1,
		}
		if err := ec.DB.Create(&enrollment).Error; err != nil {
			ec.Logger.Errorf("Failed to create enrollment for prospect %d: %v", prospect.ID, err)
			continue
		}

		if err := ec.Steps.ScheduleInitialEmails(c.Context(), enrollment.ID, prospect.ID, sequence.ID); err != nil {
			ec.Logger.Warnf("First step not scheduled for enrollment %d: %v", enrollment.ID, err)
		}

		enrolled = append(enrolled, enrollment)
	}

	if len(enrolled) > 0 {
		newBalance := user.EmailCredits - len(enrolled)
		if err := ec.DB.Model(user).Updates(map[string]interface{}{
			"email_credits":    newBalance,
			"credits_consumed": gorm.Expr("credits_consumed + ?", len(enrolled)),
		}).Error; err != nil {
			ec.Logger.Errorf("Failed to consume credits for user %d: %v", user.ID, err)
		} else {
			tx := models.CreditTransaction{
				UserID:      user.ID,
				Type:        models.CreditTxConsumption,
				Amount:      -len(enrolled),
				Balance:     newBalance,
				Description: "Sequence enrollment",
			}
			ec.DB.Create(&tx)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"enrolled": enrolled,
		"skipped":  skipped,
	})
}

// GetEnrollments lists enrollments, optionally filtered by status. Each
// row carries its scheduled emails so stalled enrollments (failed last
// email) are visible without digging through logs.
func (ec *EnrollmentController) GetEnrollments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := ec.DB.Where("user_id = ?", user.ID).
		Preload("Prospect").
		Preload("ScheduledEmails", func(db *gorm.DB) *gorm.DB {
			return db.Order("scheduled_for DESC")
		})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if seqID := c.Query("sequence_id"); seqID != "" {
		query = query.Where("sequence_id = ?", utils.ParseUint(seqID))
	}

	var enrollments []models.Enrollment
	if err := query.Order("id DESC").Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch enrollments",
		})
	}

	return c.JSON(enrollments)
}

// MarkReplied is the out-of-band reply signal endpoint
func (ec *EnrollmentController) MarkReplied(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	enrollmentID := utils.ParseUint(c.Params("id"))

	var enrollment models.Enrollment
	if err := ec.DB.Where("id = ? AND user_id = ?", enrollmentID, user.ID).First(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Enrollment not found",
		})
	}

	if err := ec.Replies.MarkReplied(c.Context(), enrollmentID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to mark enrollment as replied",
		})
	}

	return c.JSON(fiber.Map{"message": "Enrollment marked as replied"})
}

// UpdateEnrollmentStatus is the general status-update path. Terminal
// destinations cancel all pending emails through the same routine the
// reply handler uses.
func (ec *EnrollmentController) UpdateEnrollmentStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	enrollmentID := utils.ParseUint(c.Params("id"))

	var input struct {
		Status string `json:"status" validate:"required,oneof=active paused completed replied bounced unsubscribed"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var enrollment models.Enrollment
	if err := ec.DB.Where("id = ? AND user_id = ?", enrollmentID, user.ID).First(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Enrollment not found",
		})
	}

	if err := ec.Replies.UpdateStatus(c.Context(), enrollmentID, input.Status); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"message": "Enrollment status updated"})
}

// GetSchedulerStatus is the observability hook for the polling loop
func (ec *EnrollmentController) GetSchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(ec.Scheduler.Status())
}

func (ec *EnrollmentController) StartScheduler(c *fiber.Ctx) error {
	if !ec.Scheduler.Start() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Scheduler is already running",
		})
	}
	return c.JSON(fiber.Map{"message": "Scheduler started"})
}

func (ec *EnrollmentController) StopScheduler(c *fiber.Ctx) error {
	if !ec.Scheduler.Stop() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Scheduler is not running",
		})
	}
	return c.JSON(fiber.Map{"message": "Scheduler stopped"})
}

// HandleSchedulerWS streams scheduler status snapshots to a dashboard
// client until it disconnects.
func (ec *EnrollmentController) HandleSchedulerWS(conn *websocket.Conn) {
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(ec.Scheduler.Status()); err != nil {
			return
		}
	}
}
