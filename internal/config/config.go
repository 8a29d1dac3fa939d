package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	Port        string

	// MaxInstances bounds concurrent invocations of every function
	MaxInstances int

	Logging   LoggingConfig
	Store     StoreConfig
	Trigger   TriggerConfig
	RateLimit RateLimitConfig
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	Type       string // "sqlite", "dynamodb" or "memory"
	Collection string

	SQLitePath string

	DynamoDBTable      string
	DynamoDBEndpoint   string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// TriggerConfig holds redelivery settings for the in-process trigger
type TriggerConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RateLimitConfig holds ingress rate limiting settings
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

var storeTypes = []string{"sqlite", "dynamodb", "memory"}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Set up Viper
	viper.AutomaticEnv()
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("MAX_INSTANCES", 10)
	viper.SetDefault("MESSAGES_COLLECTION", "messages")
	viper.SetDefault("STORE_TYPE", "sqlite")
	viper.SetDefault("SQLITE_PATH", "./data/messages.db")
	viper.SetDefault("DYNAMODB_TABLE", "messages")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("TRIGGER_MAX_ATTEMPTS", 5)
	viper.SetDefault("TRIGGER_INITIAL_DELAY", "200ms")
	viper.SetDefault("TRIGGER_MAX_DELAY", "10s")
	viper.SetDefault("RATE_LIMIT_RPS", 100)
	viper.SetDefault("RATE_LIMIT_BURST", 200)

	config := &Config{
		Environment:  viper.GetString("ENVIRONMENT"),
		Port:         viper.GetString("PORT"),
		MaxInstances: viper.GetInt("MAX_INSTANCES"),
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Store: StoreConfig{
			Type:               strings.ToLower(viper.GetString("STORE_TYPE")),
			Collection:         viper.GetString("MESSAGES_COLLECTION"),
			SQLitePath:         viper.GetString("SQLITE_PATH"),
			DynamoDBTable:      viper.GetString("DYNAMODB_TABLE"),
			DynamoDBEndpoint:   viper.GetString("DYNAMODB_ENDPOINT"),
			AWSRegion:          viper.GetString("AWS_REGION"),
			AWSAccessKeyID:     viper.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: viper.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		Trigger: TriggerConfig{
			MaxAttempts:  viper.GetInt("TRIGGER_MAX_ATTEMPTS"),
			InitialDelay: viper.GetDuration("TRIGGER_INITIAL_DELAY"),
			MaxDelay:     viper.GetDuration("TRIGGER_MAX_DELAY"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             viper.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the functions cannot run with
func (c *Config) Validate() error {
	if c.MaxInstances < 1 {
		return fmt.Errorf("MAX_INSTANCES must be at least 1, got %d", c.MaxInstances)
	}

	if !lo.Contains(storeTypes, c.Store.Type) {
		return fmt.Errorf("unsupported STORE_TYPE %q, expected one of %s", c.Store.Type, strings.Join(storeTypes, ", "))
	}

	if strings.TrimSpace(c.Store.Collection) == "" {
		return fmt.Errorf("MESSAGES_COLLECTION cannot be empty")
	}
	if c.Store.Type == "dynamodb" && strings.TrimSpace(c.Store.DynamoDBTable) == "" {
		return fmt.Errorf("DYNAMODB_TABLE cannot be empty")
	}
	if c.Trigger.MaxAttempts < 1 {
		return fmt.Errorf("TRIGGER_MAX_ATTEMPTS must be at least 1, got %d", c.Trigger.MaxAttempts)
	}

	return nil
}

// IsProduction reports whether the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetEnv gets an environment variable with a fallback value
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
