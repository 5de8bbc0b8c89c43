package controller

import (
	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
)

type ProspectController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewProspectController(db *gorm.DB, logger *logrus.Logger) *ProspectController {
	return &ProspectController{DB: db, Logger: logger}
}

type prospectInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Title     string `json:"title"`
	Website   string `json:"website"`
	LinkedIn  string `json:"linkedin_url"`
	Industry  string `json:"industry"`
	Notes     string `json:"notes"`
}

func (pc *ProspectController) CreateProspect(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input prospectInput
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
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}

	prospect := models.Prospect{
		UserID:    user.ID,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Company:   input.Company,
		Title:     input.Title,
		Website:   input.Website,
		LinkedIn:  input.LinkedIn,
		Industry:  input.Industry,
		Notes:     input.Notes,
		Source:    "manual",
	}

	// Best-effort domain research for generation context
	if prospect.Website != "" {
		if summary, err := utils.ResearchCompanyDomain(prospect.Website); err == nil && summary != "" {
			prospect.ResearchSummary = summary
		}
	}

	if err := pc.DB.Create(&prospect).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create prospect",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(prospect)
}

// ImportProspects bulk-creates prospects, skipping rows with invalid
// email addresses instead of rejecting the whole batch.
func (pc *ProspectController) ImportProspects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Prospects []prospectInput `json:"prospects" validate:"required,min=1"`
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

	var created []models.Prospect
	var skipped []fiber.Map

	for i, row := range input.Prospects {
		if err := checkmail.ValidateFormat(row.Email); err != nil {
			skipped = append(skipped, fiber.Map{
				"index": i,
				"email": row.Email,
				"error": "invalid email format",
			})
			continue
		}

		created = append(created, models.Prospect{
			UserID:    user.ID,
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Company:   row.Company,
			Title:     row.Title,
			Website:   row.Website,
			LinkedIn:  row.LinkedIn,
			Industry:  row.Industry,
			Notes:     row.Notes,
			Source:    "csv",
		})
	}

	if len(created) > 0 {
		if err := pc.DB.Create(&created).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to import prospects",
			})
		}
	}

	pc.Logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"imported": len(created),
		"skipped":  len(skipped),
	}).Info("Prospect import finished")

	return c.JSON(fiber.Map{
		"imported": len(created),
		"skipped":  skipped,
	})
}

func (pc *ProspectController) GetProspects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if limit > 200 {
		limit = 200
	}

	query := pc.DB.Where("user_id = ?", user.ID)
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email ILIKE ? OR company ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?",
			like, like, like, like)
	}

	var total int64
	query.Model(&models.Prospect{}).Count(&total)

	var prospects []models.Prospect
	if err := query.Offset((page - 1) * limit).Limit(limit).Order("id DESC").Find(&prospects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch prospects",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  prospects,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (pc *ProspectController) GetProspect(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var prospect models.Prospect
	if err := pc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Preload("Enrollments").First(&prospect).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Prospect not found",
		})
	}

	return c.JSON(prospect)
}

func (pc *ProspectController) UpdateProspect(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var prospect models.Prospect
	if err := pc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&prospect).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Prospect not found",
		})
	}

	var input prospectInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.Email != "" {
		if err := checkmail.ValidateFormat(input.Email); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid email address",
			})
		}
		prospect.Email = input.Email
	}

	prospect.FirstName = input.FirstName
	prospect.LastName = input.LastName
	prospect.Company = input.Company
	prospect.Title = input.Title
	prospect.Website = input.Website
	prospect.LinkedIn = input.LinkedIn
	prospect.Industry = input.Industry
	prospect.Notes = input.Notes

	if err := pc.DB.Save(&prospect).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update prospect",
		})
	}

	return c.JSON(prospect)
}

func (pc *ProspectController) DeleteProspect(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := pc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Prospect{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete prospect",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Prospect not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Prospect deleted"})
}
