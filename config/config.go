package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"outreachly/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type GeneratorConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
	Model   string `json:"model"`
}

type Config struct {
	Environment   string `json:"environment"`
	ServerPort    string `json:"server_port"`
	EncryptionKey string `json:"-"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	StripeSecretKey     string `json:"-"`
	StripeWebhookSecret string `json:"-"`

	SentryDSN string `json:"sentry_dsn"`

	Redis     RedisConfig     `json:"redis"`
	Generator GeneratorConfig `json:"generator"`

	// Scheduler tuning
	SchedulerInterval  time.Duration `json:"scheduler_interval"`
	ReplyPollInterval  time.Duration `json:"reply_poll_interval"`
	RateLimitEnroll    int           `json:"rate_limit_enroll"`
	SchedulerDisabled  bool          `json:"scheduler_disabled"`
	ReplyWorkerEnabled bool          `json:"reply_worker_enabled"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerPort:    getEnv("SERVER_PORT", "5000"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "outreachly"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		SentryDSN: getEnv("SENTRY_DSN", ""),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Generator: GeneratorConfig{
			BaseURL: getEnv("GENERATOR_BASE_URL", "https://api.openai.com"),
			APIKey:  getEnv("GENERATOR_API_KEY", ""),
			Model:   getEnv("GENERATOR_MODEL", "gpt-4o-mini"),
		},

		SchedulerInterval:  getEnvAsDuration("SCHEDULER_INTERVAL", time.Minute),
		ReplyPollInterval:  getEnvAsDuration("REPLY_POLL_INTERVAL", 5*time.Minute),
		RateLimitEnroll:    getEnvAsInt("RATE_LIMIT_ENROLL", 30),
		SchedulerDisabled:  getEnv("SCHEDULER_DISABLED", "false") == "true",
		ReplyWorkerEnabled: getEnv("REPLY_WORKER_ENABLED", "true") == "true",
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.Environment == "production" && AppConfig.Generator.APIKey == "" {
		return fmt.Errorf("GENERATOR_API_KEY is required in production")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.Infof("Using connection string: %s", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Successfully connected to the database")
	logrus.Info("Starting database migration...")
	if err := models.Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.Info("Loaded configuration:")
	logrus.Infof("Environment: %s", AppConfig.Environment)
	logrus.Infof("Server Port: %s", AppConfig.ServerPort)
	logrus.Infof("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	logrus.Infof("Scheduler interval: %s", AppConfig.SchedulerInterval)
}
