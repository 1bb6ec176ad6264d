package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Classifier   ClassifierConfig
	Workers      WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. Redis backs the outbox broker when Enabled.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BootstrapEmail and BootstrapPassword seed an All Departments profile at startup.
	BootstrapEmail    string
	BootstrapPassword string
}

// NotificationConfig configures outbound email delivery.
type NotificationConfig struct {
	EmailFrom      string
	SendGridAPIKey string
	WebhookURL     string
}

// ClassifierConfig points at the external classification service.
type ClassifierConfig struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
	MaxInFlight    int
	CallbackToken  string
}

// WorkerConfig holds background job schedules (cron expressions).
type WorkerConfig struct {
	SweepSchedule     string
	StuckAfterMinutes int
	DeliverySchedule  string
	DeliveryBatchSize int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapEmail:        getEnv("AUTH_BOOTSTRAP_EMAIL", ""),
			BootstrapPassword:     getEnv("AUTH_BOOTSTRAP_PASSWORD", ""),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "support@example.com"),
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Classifier: ClassifierConfig{
			URL:            getEnv("CLASSIFIER_URL", ""),
			APIKey:         os.Getenv("CLASSIFIER_API_KEY"),
			TimeoutSeconds: getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 8),
			MaxInFlight:    getEnvAsInt("CLASSIFIER_MAX_IN_FLIGHT", 16),
			CallbackToken:  os.Getenv("CLASSIFIER_CALLBACK_TOKEN"),
		},
		Workers: WorkerConfig{
			SweepSchedule:     getEnv("WORKER_SWEEP_SCHEDULE", "*/5 * * * *"),
			StuckAfterMinutes: getEnvAsInt("WORKER_STUCK_AFTER_MINUTES", 10),
			DeliverySchedule:  getEnv("WORKER_DELIVERY_SCHEDULE", "@every 30s"),
			DeliveryBatchSize: getEnvAsInt("WORKER_DELIVERY_BATCH_SIZE", 50),
		},
	}

	if cfg.Classifier.MaxInFlight <= 0 {
		return nil, fmt.Errorf("invalid CLASSIFIER_MAX_IN_FLIGHT: %d", cfg.Classifier.MaxInFlight)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout is the hard deadline for one classification call.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StuckAfter is how long a ticket may sit in Classifying before the sweeper retries it.
func (w WorkerConfig) StuckAfter() time.Duration {
	if w.StuckAfterMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.StuckAfterMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
