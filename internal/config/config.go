package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	LogLevel             string
	JWTSecret            string
	JWTExpirationMinutes int
	Database             DatabaseConfig
	Events               EventsConfig
	Booking              BookingConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string // mysql, postgres or memory
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
	Debug    bool
}

// EventsConfig selects where booking notifications are published
type EventsConfig struct {
	Sink           string // log, redis or sqs
	RedisURL       string
	RedisStream    string
	SQSQueueURL    string
	AWSRegion      string
	PublishTimeout time.Duration
}

// BookingConfig holds the tunable booking rules
type BookingConfig struct {
	CancellationWindowHours int
	DefaultSlotMinutes      int
}

// IsDevelopment reports whether internal error details may be exposed.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CancellationWindow is the minimum notice for cancel and reschedule.
func (c *Config) CancellationWindow() time.Duration {
	return time.Duration(c.Booking.CancellationWindowHours) * time.Hour
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first if present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
		DSN:      getEnv("DB_DSN", ""),
		Debug:    getEnv("DB_DEBUG", "false") == "true",
	}

	// Build DSN (Data Source Name) unless one was given
	switch dbConfig.Driver {
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		if dbConfig.DSN == "" {
			dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
		}
	case "postgres":
		dbConfig.Port = getEnv("DB_PORT", "5432")
		if dbConfig.DSN == "" {
			dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q", dbConfig.Driver)
	}

	publishTimeoutMs, err := strconv.Atoi(getEnv("EVENTS_PUBLISH_TIMEOUT_MS", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENTS_PUBLISH_TIMEOUT_MS: %w", err)
	}
	eventsConfig := EventsConfig{
		Sink:           getEnv("EVENTS_SINK", "log"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisStream:    getEnv("REDIS_STREAM", "appointments:events"),
		SQSQueueURL:    getEnv("SQS_QUEUE_URL", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		PublishTimeout: time.Duration(publishTimeoutMs) * time.Millisecond,
	}
	switch eventsConfig.Sink {
	case "log", "redis":
	case "sqs":
		if eventsConfig.SQSQueueURL == "" {
			return nil, fmt.Errorf("SQS_QUEUE_URL is required when EVENTS_SINK=sqs")
		}
	default:
		return nil, fmt.Errorf("invalid EVENTS_SINK %q", eventsConfig.Sink)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	cancellationWindow, err := strconv.Atoi(getEnv("CANCELLATION_WINDOW_HOURS", "24"))
	if err != nil || cancellationWindow < 0 {
		return nil, fmt.Errorf("invalid CANCELLATION_WINDOW_HOURS: %q", getEnv("CANCELLATION_WINDOW_HOURS", ""))
	}

	defaultSlot, err := strconv.Atoi(getEnv("DEFAULT_SLOT_MINUTES", "30"))
	if err != nil || defaultSlot <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_SLOT_MINUTES: %q", getEnv("DEFAULT_SLOT_MINUTES", ""))
	}

	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		Database:             dbConfig,
		Events:               eventsConfig,
		Booking: BookingConfig{
			CancellationWindowHours: cancellationWindow,
			DefaultSlotMinutes:      defaultSlot,
		},
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
