// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Schema migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Relay policy: maximum messages a sender may relay per rolling hour.
	MaxMessagesPerHour int `env:"MAX_MESSAGES_PER_HOUR" envDefault:"3"`

	// Message template sent to plate owners. The {licence_plate} placeholder
	// is replaced with the registered plate number.
	MessageTemplate string `env:"MESSAGE_TEMPLATE" envDefault:"Someone left a message about your vehicle {licence_plate}:"`

	// Courier (outbound delivery endpoint)
	CourierURL           string        `env:"COURIER_URL,required"`
	CourierSecret        string        `env:"COURIER_SECRET,required"`
	CourierTimeout       time.Duration `env:"COURIER_TIMEOUT" envDefault:"10s"`
	CourierMaxRetries    int           `env:"COURIER_MAX_RETRIES" envDefault:"3"`
	CourierRatePerSecond float64       `env:"COURIER_RATE_PER_SECOND" envDefault:"25"`
	CourierBurst         int           `env:"COURIER_BURST" envDefault:"5"`

	// Ingress rate limiting (per access key / per IP, Redis token bucket)
	RateLimitAPIEnabled     bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitWebhookEnabled bool `env:"RATE_LIMIT_WEBHOOK_ENABLED" envDefault:"true"`
	RateLimitRPM            int  `env:"RATE_LIMIT_RPM" envDefault:"120"`
	RateLimitBurst          int  `env:"RATE_LIMIT_BURST" envDefault:"20"`
	RateLimitWebhookRPS     int  `env:"RATE_LIMIT_WEBHOOK_RPS" envDefault:"100"`
	RateLimitWebhookBurst   int  `env:"RATE_LIMIT_WEBHOOK_BURST" envDefault:"20"`

	// Conversation flow state expiry
	ConversationTTL time.Duration `env:"CONVERSATION_TTL" envDefault:"10m"`

	// Delivery audit pipeline
	AuditEnabled       bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditBatchSize     int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`
	AuditBlockDuration time.Duration `env:"AUDIT_BLOCK_DURATION" envDefault:"5s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxMessagesPerHour <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGES_PER_HOUR must be positive, got %d", cfg.MaxMessagesPerHour)
	}
	return cfg, nil
}
