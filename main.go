package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"outreachly/config"
	"outreachly/middleware"
	"outreachly/models"
	"outreachly/routes"
	"outreachly/store"
	"outreachly/utils"
	"outreachly/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Build the scheduling pipeline
	st := store.NewGormStore(config.DB)

	var generator utils.ContentGenerator
	if config.AppConfig.Generator.APIKey != "" {
		generator = utils.NewLLMGenerator(
			config.AppConfig.Generator.BaseURL,
			config.AppConfig.Generator.APIKey,
			config.AppConfig.Generator.Model,
		)
	} else {
		logger.Warn("No generator API key configured; steps without templates will not be scheduled")
	}

	mailer := utils.NewSMTPMailer(os.Getenv("MESSAGE_ID_DOMAIN"))

	steps := worker.NewStepScheduler(st, generator, logger)
	advancer := worker.NewAdvancer(st, steps, logger)
	scheduler := worker.NewEmailScheduler(st, mailer, advancer, logger, config.AppConfig.SchedulerInterval)
	replies := worker.NewReplyHandler(st, logger)

	if !config.AppConfig.SchedulerDisabled {
		scheduler.Start()
	} else {
		logger.Info("Email scheduler disabled by configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.AppConfig.ReplyWorkerEnabled {
		replyWorker := worker.NewReplyWorker(config.DB, replies, logger, config.AppConfig.ReplyPollInterval)
		go replyWorker.Start(ctx)
	}

	// Reset per-profile daily send counters at midnight
	c := cron.New()
	if _, err := c.AddFunc("0 0 * * *", func() {
		res := config.DB.Model(&models.Profile{}).Where("sent_today > 0").Update("sent_today", 0)
		if res.Error != nil {
			logger.Errorf("Failed to reset daily counters: %v", res.Error)
			return
		}
		logger.Infof("Daily send counters reset for %d profiles", res.RowsAffected)
	}); err != nil {
		logger.Fatalf("Failed to schedule daily counter reset: %v", err)
	}
	c.Start()
	defer c.Stop()

	// Setup routes
	routes.SetupRoutes(app, config.DB, logger, scheduler, steps, replies)

	// Graceful shutdown: stop taking traffic, then drain the scheduler
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logger.Info("Shutdown signal received")
		_ = app.Shutdown()
	}()

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	scheduler.Stop()
	cancel()
	logger.Info("Server stopped")
}
