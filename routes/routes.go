package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "outreachly/controllers"
	"outreachly/middleware"
	"outreachly/utils"
	"outreachly/worker"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB, appLogger *logrus.Logger) {
	authController := controller.NewAuthController(db, appLogger)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", authController.GetCurrentUser)

	appLogger.Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, appLogger *logrus.Logger,
	scheduler *worker.EmailScheduler, steps *worker.StepScheduler, replies *worker.ReplyHandler) {

	prospectController := controller.NewProspectController(db, appLogger)
	sequenceController := controller.NewSequenceController(db, appLogger)
	enrollmentController := controller.NewEnrollmentController(db, appLogger, scheduler, steps, replies)
	profileController := controller.NewProfileController(db, appLogger)
	billingController := controller.NewBillingController(db, appLogger)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Prospect routes
	prospect := api.Group("/prospects")
	prospect.Post("/", prospectController.CreateProspect)
	prospect.Get("/", prospectController.GetProspects)
	prospect.Get("/:id", prospectController.GetProspect)
	prospect.Put("/:id", prospectController.UpdateProspect)
	prospect.Delete("/:id", prospectController.DeleteProspect)
	prospect.Post("/import", prospectController.ImportProspects)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Put("/:id/steps", sequenceController.ReplaceSteps)

	// Enrollment routes with rate limiting on the fan-out endpoint
	enrollment := api.Group("/enrollments")
	enrollment.Post("/", middleware.EnrollmentRateLimiter(), enrollmentController.EnrollProspects)
	enrollment.Get("/", enrollmentController.GetEnrollments)
	enrollment.Post("/:id/replied", enrollmentController.MarkReplied)
	enrollment.Put("/:id/status", enrollmentController.UpdateEnrollmentStatus)

	// Scheduler lifecycle and observability
	schedulerGroup := api.Group("/scheduler")
	schedulerGroup.Get("/status", enrollmentController.GetSchedulerStatus)
	schedulerGroup.Post("/start", enrollmentController.StartScheduler)
	schedulerGroup.Post("/stop", enrollmentController.StopScheduler)

	// WebSocket route for live scheduler status
	app.Get("/api/v1/scheduler/ws", websocket.New(func(c *websocket.Conn) {
		enrollmentController.HandleSchedulerWS(c)
	}))

	// Sender profile routes
	profile := api.Group("/profiles")
	profile.Post("/", profileController.CreateProfile)
	profile.Get("/", profileController.GetProfiles)
	profile.Put("/:id", profileController.UpdateProfile)
	profile.Delete("/:id", profileController.DeleteProfile)

	// Billing routes
	billing := api.Group("/billing")
	billing.Get("/plans", billingController.GetPlans)
	billing.Get("/credits", billingController.GetCredits)
	billing.Post("/checkout", billingController.CreateCheckoutSession)
	billing.Post("/complete", billingController.CompletePurchase)

	appLogger.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, appLogger *logrus.Logger,
	scheduler *worker.EmailScheduler, steps *worker.StepScheduler, replies *worker.ReplyHandler) {

	// Initialize Stripe
	utils.InitStripe()

	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db, appLogger)
	SetupAPIRoutes(app, db, appLogger, scheduler, steps, replies)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
