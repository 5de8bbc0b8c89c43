package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
)

type SequenceController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewSequenceController(db *gorm.DB, logger *logrus.Logger) *SequenceController {
	return &SequenceController{DB: db, Logger: logger}
}

type stepInput struct {
	StepNumber      int    `json:"step_number" validate:"required,min=1"`
	DelayDays       int    `json:"delay_days" validate:"min=0"`
	SendTimeHour    int    `json:"send_time_hour" validate:"min=0,max=23"`
	SendTimeMinute  int    `json:"send_time_minute" validate:"min=0,max=59"`
	SubjectTemplate string `json:"subject_template"`
	BodyTemplate    string `json:"body_template"`
	IsFollowUp      bool   `json:"is_follow_up"`
}

func (si stepInput) toModel(sequenceID uint) models.SequenceStep {
	return models.SequenceStep{
		SequenceID:      sequenceID,
		StepNumber:      si.StepNumber,
		DelayDays:       si.DelayDays,
		SendTimeHour:    si.SendTimeHour,
		SendTimeMinute:  si.SendTimeMinute,
		SubjectTemplate: si.SubjectTemplate,
		BodyTemplate:    si.BodyTemplate,
		IsFollowUp:      si.IsFollowUp,
	}
}

func validStepNumbers(steps []stepInput) bool {
	seen := make(map[int]bool, len(steps))
	for _, s := range steps {
		if s.StepNumber < 1 || s.StepNumber > len(steps) || seen[s.StepNumber] {
			return false
		}
		seen[s.StepNumber] = true
	}
	return true
}

func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string      `json:"name" validate:"required"`
		Description string      `json:"description"`
		Tone        string      `json:"tone" validate:"omitempty,oneof=casual professional hyper-personal"`
		Length      string      `json:"length" validate:"omitempty,oneof=short medium"`
		Steps       []stepInput `json:"steps"`
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
	if len(input.Steps) > 0 && !validStepNumbers(input.Steps) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Step numbers must be unique and contiguous from 1",
		})
	}

	sequence := models.Sequence{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		Status:      models.SequenceStatusDraft,
		Tone:        input.Tone,
		Length:      input.Length,
	}
	if sequence.Tone == "" {
		sequence.Tone = models.ToneCasual
	}
	if sequence.Length == "" {
		sequence.Length = models.LengthShort
	}

	tx := sc.DB.Begin()
	if err := tx.Create(&sequence).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create sequence",
		})
	}

	for _, step := range input.Steps {
		model := step.toModel(sequence.ID)
		if err := tx.Create(&model).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create sequence steps",
			})
		}
	}

	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create sequence",
		})
	}

	sc.DB.Preload("Steps", orderSteps).First(&sequence, sequence.ID)
	return c.Status(fiber.StatusCreated).JSON(sequence)
}

func orderSteps(db *gorm.DB) *gorm.DB {
	return db.Order("step_number ASC")
}

func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequences []models.Sequence
	query := sc.DB.Where("user_id = ?", user.ID).Preload("Steps", orderSteps)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Order("id DESC").Find(&sequences).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sequences",
		})
	}

	return c.JSON(sequences)
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Preload("Steps", orderSteps).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	return c.JSON(sequence)
}

func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Status      string `json:"status" validate:"omitempty,oneof=draft active paused archived"`
		Tone        string `json:"tone" validate:"omitempty,oneof=casual professional hyper-personal"`
		Length      string `json:"length" validate:"omitempty,oneof=short medium"`
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

	if input.Name != "" {
		sequence.Name = input.Name
	}
	if input.Description != "" {
		sequence.Description = input.Description
	}
	if input.Status != "" {
		sequence.Status = input.Status
	}
	if input.Tone != "" {
		sequence.Tone = input.Tone
	}
	if input.Length != "" {
		sequence.Length = input.Length
	}

	if err := sc.DB.Save(&sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update sequence",
		})
	}

	return c.JSON(sequence)
}

// ReplaceSteps swaps out a sequence's entire step list in one transaction.
// Steps are otherwise immutable, so this is the only step-edit operation.
func (sc *SequenceController) ReplaceSteps(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	var input struct {
		Steps []stepInput `json:"steps" validate:"required,min=1"`
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
	if !validStepNumbers(input.Steps) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Step numbers must be unique and contiguous from 1",
		})
	}

	tx := sc.DB.Begin()
	if err := tx.Where("sequence_id = ?", sequence.ID).Delete(&models.SequenceStep{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to replace steps",
		})
	}

	for _, step := range input.Steps {
		model := step.toModel(sequence.ID)
		if err := tx.Create(&model).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to replace steps",
			})
		}
	}

	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to replace steps",
		})
	}

	sc.Logger.WithFields(logrus.Fields{
		"sequence_id": sequence.ID,
		"steps":       len(input.Steps),
	}).Info("Sequence steps replaced")

	sc.DB.Preload("Steps", orderSteps).First(&sequence, sequence.ID)
	return c.JSON(sequence)
}
