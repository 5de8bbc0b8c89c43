package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreachly/models"
	"outreachly/utils"
)

type BillingController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewBillingController(db *gorm.DB, logger *logrus.Logger) *BillingController {
	return &BillingController{DB: db, Logger: logger}
}

func (bc *BillingController) GetPlans(c *fiber.Ctx) error {
	var plans []models.Plan
	if err := bc.DB.Order("price_cents ASC").Find(&plans).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch plans",
		})
	}
	return c.JSON(plans)
}

func (bc *BillingController) GetCredits(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var transactions []models.CreditTransaction
	bc.DB.Where("user_id = ?", user.ID).Order("id DESC").Limit(50).Find(&transactions)

	return c.JSON(fiber.Map{
		"plan_name":        user.PlanName,
		"email_credits":    user.EmailCredits,
		"credits_consumed": user.CreditsConsumed,
		"transactions":     transactions,
	})
}

// CreateCheckoutSession starts a Stripe Checkout flow for a credit pack.
// Credits are granted by CompletePurchase once the payment succeeds.
func (bc *BillingController) CreateCheckoutSession(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		PlanName   string `json:"plan_name" validate:"required"`
		SuccessURL string `json:"success_url" validate:"required,url"`
		CancelURL  string `json:"cancel_url" validate:"required,url"`
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

	var plan models.Plan
	if err := bc.DB.Where("name = ?", input.PlanName).First(&plan).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Plan not found",
		})
	}

	customerID, err := utils.EnsureStripeCustomer(user)
	if err != nil {
		bc.Logger.Errorf("Stripe customer creation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start checkout",
		})
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID != customerID {
		bc.DB.Model(user).Update("stripe_customer_id", customerID)
	}

	sess, err := utils.CreateCreditCheckoutSession(customerID, &plan, input.SuccessURL, input.CancelURL)
	if err != nil {
		bc.Logger.Errorf("Checkout session creation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start checkout",
		})
	}

	return c.JSON(fiber.Map{
		"session_id":   sess.ID,
		"checkout_url": sess.URL,
	})
}

// CompletePurchase grants the credits for a finished checkout session.
// The session ID is recorded on the transaction so a replayed confirmation
// cannot grant credits twice.
func (bc *BillingController) CompletePurchase(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		SessionID    string `json:"session_id" validate:"required"`
		PlanName     string `json:"plan_name" validate:"required"`
		EmailCredits string `json:"email_credits" validate:"required"`
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

	credits, err := strconv.Atoi(input.EmailCredits)
	if err != nil || credits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid credit amount",
		})
	}

	var existing int64
	bc.DB.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND stripe_session_id = ?", user.ID, input.SessionID).
		Count(&existing)
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Purchase already processed",
		})
	}

	newBalance := user.EmailCredits + credits
	tx := bc.DB.Begin()
	if err := tx.Model(user).Updates(map[string]interface{}{
		"email_credits": newBalance,
		"plan_name":     input.PlanName,
	}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply purchase",
		})
	}

	record := models.CreditTransaction{
		UserID:          user.ID,
		Type:            models.CreditTxPurchase,
		Amount:          credits,
		Balance:         newBalance,
		Description:     "Credit pack purchase: " + input.PlanName,
		StripeSessionID: &input.SessionID,
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record purchase",
		})
	}

	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply purchase",
		})
	}

	bc.Logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"credits": credits,
		"plan":    input.PlanName,
	}).Info("Credit purchase completed")

	return c.JSON(fiber.Map{
		"email_credits": newBalance,
		"plan_name":     input.PlanName,
	})
}
