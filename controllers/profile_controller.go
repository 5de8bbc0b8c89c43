package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
)

type ProfileController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewProfileController(db *gorm.DB, logger *logrus.Logger) *ProfileController {
	return &ProfileController{DB: db, Logger: logger}
}

type profileInput struct {
	FromEmail string `json:"from_email" validate:"required,email"`
	FromName  string `json:"from_name"`
	IsDefault bool   `json:"is_default"`

	SMTPHost     string `json:"smtp_host" validate:"required"`
	SMTPPort     int    `json:"smtp_port" validate:"min=0,max=65535"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`

	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port" validate:"min=0,max=65535"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	IMAPMailbox  string `json:"imap_mailbox"`

	DailyLimit int `json:"daily_limit" validate:"min=0"`
}

func (pc *ProfileController) CreateProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input profileInput
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

	profile := models.Profile{
		UserID:       user.ID,
		FromEmail:    input.FromEmail,
		FromName:     input.FromName,
		IsDefault:    input.IsDefault,
		SMTPHost:     input.SMTPHost,
		SMTPPort:     input.SMTPPort,
		SMTPUsername: input.SMTPUsername,
		IMAPHost:     input.IMAPHost,
		IMAPPort:     input.IMAPPort,
		IMAPUsername: input.IMAPUsername,
		IMAPMailbox:  input.IMAPMailbox,
		DailyLimit:   input.DailyLimit,
	}
	if profile.SMTPPort == 0 {
		profile.SMTPPort = 587
	}
	if profile.IMAPPort == 0 {
		profile.IMAPPort = 993
	}
	if profile.DailyLimit == 0 {
		profile.DailyLimit = 500
	}

	if input.SMTPPassword != "" {
		encrypted, err := utils.Encrypt(input.SMTPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store SMTP credentials",
			})
		}
		profile.SMTPPassword = encrypted
	}
	if input.IMAPPassword != "" {
		encrypted, err := utils.Encrypt(input.IMAPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store IMAP credentials",
			})
		}
		profile.IMAPPassword = encrypted
	}

	if input.IsDefault {
		pc.DB.Model(&models.Profile{}).Where("user_id = ?", user.ID).Update("is_default", false)
	}

	if err := pc.DB.Create(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	pc.Logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"profile_id": profile.ID,
	}).Info("Sender profile created")

	profile.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (pc *ProfileController) GetProfiles(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var profiles []models.Profile
	if err := pc.DB.Where("user_id = ?", user.ID).
		Order("is_default DESC, id ASC").Find(&profiles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profiles",
		})
	}

	for i := range profiles {
		profiles[i].Sanitize()
	}
	return c.JSON(profiles)
}

func (pc *ProfileController) UpdateProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var profile models.Profile
	if err := pc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&profile).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	var input profileInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if input.FromEmail != "" {
		profile.FromEmail = input.FromEmail
	}
	profile.FromName = input.FromName
	if input.SMTPHost != "" {
		profile.SMTPHost = input.SMTPHost
	}
	if input.SMTPPort != 0 {
		profile.SMTPPort = input.SMTPPort
	}
	if input.SMTPUsername != "" {
		profile.SMTPUsername = input.SMTPUsername
	}
	if input.SMTPPassword != "" {
		encrypted, err := utils.Encrypt(input.SMTPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store SMTP credentials",
			})
		}
		profile.SMTPPassword = encrypted
	}
	if input.IMAPHost != "" {
		profile.IMAPHost = input.IMAPHost
	}
	if input.IMAPPort != 0 {
		profile.IMAPPort = input.IMAPPort
	}
	if input.IMAPUsername != "" {
		profile.IMAPUsername = input.IMAPUsername
	}
	if input.IMAPPassword != "" {
		encrypted, err := utils.Encrypt(input.IMAPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store IMAP credentials",
			})
		}
		profile.IMAPPassword = encrypted
	}
	if input.IMAPMailbox != "" {
		profile.IMAPMailbox = input.IMAPMailbox
	}
	if input.DailyLimit > 0 {
		profile.DailyLimit = input.DailyLimit
	}

	if input.IsDefault && !profile.IsDefault {
		pc.DB.Model(&models.Profile{}).Where("user_id = ?", user.ID).Update("is_default", false)
		profile.IsDefault = true
	}

	if err := pc.DB.Save(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	profile.Sanitize()
	return c.JSON(profile)
}

func (pc *ProfileController) DeleteProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := pc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Profile{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete profile",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Profile deleted"})
}
