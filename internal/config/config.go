package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"coworking/internal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "change-me-jwt-secret"

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// DatabaseURL is a postgres:// URL or an SQLite DSN.
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:coworking.db?_pragma=busy_timeout(5000)"`

	// MaxBookingHours takes a number of hours ("6", "4.5") or a duration ("4h30m").
	MaxBookingHours Hours  `envconfig:"MAX_BOOKING_HOURS" default:"6"`
	Timezone        string `envconfig:"BOOKING_TIMEZONE" default:"Europe/Moscow"`

	JWTSecret           string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	JWTLeeway           time.Duration `envconfig:"JWT_LEEWAY" default:"30s"`
	TrustGatewayHeaders bool          `envconfig:"TRUST_GATEWAY_HEADERS" default:"true"`
	GatewayToken        string        `envconfig:"GATEWAY_TOKEN"`

	NotificationServiceURL string        `envconfig:"NOTIFICATION_SERVICE_URL"`
	UserServiceURL         string        `envconfig:"USER_SERVICE_URL"`
	NotifyTimeout          time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	NotifyQueueSize        int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
	NotifyWorkers          int           `envconfig:"NOTIFY_WORKERS" default:"2"`

	RabbitMQURL      string `envconfig:"RABBITMQ_URL"`
	RabbitMQExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"coworking.events"`

	// RedisAddr switches admission locks from in-process to Redis.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	ZoneSweepInterval time.Duration `envconfig:"ZONE_SWEEP_INTERVAL" default:"1m"`

	OTelEnabled       bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelCollectorAddr string `envconfig:"OTEL_COLLECTOR_ADDR" default:"localhost:4317"`

	location *time.Location
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location is the reference timezone for dates and naive timestamps.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) MaxBookingDuration() time.Duration {
	return time.Duration(c.MaxBookingHours)
}

// JWTEnabled reports whether bearer tokens are accepted.
func (c *Config) JWTEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func validateConfig(cfg *Config) error {
	if cfg.MaxBookingDuration() <= 0 {
		return fmt.Errorf("MAX_BOOKING_HOURS must be > 0")
	}
	if cfg.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0")
	}
	if cfg.NotifyQueueSize <= 0 || cfg.NotifyWorkers <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE and NOTIFY_WORKERS must be > 0")
	}
	if cfg.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be > 0")
	}
	if cfg.ZoneSweepInterval <= 0 {
		return fmt.Errorf("ZONE_SWEEP_INTERVAL must be > 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if !cfg.TrustGatewayHeaders && !cfg.JWTEnabled() {
		return fmt.Errorf("either TRUST_GATEWAY_HEADERS or JWT_SECRET must be enabled")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if logger.IsProdLike(cfg.AppEnv) {
		if cfg.JWTEnabled() && strings.TrimSpace(cfg.JWTSecret) == defaultJWTSecret {
			return fmt.Errorf("in prod JWT_SECRET must be set and not default")
		}
		if cfg.TrustGatewayHeaders && strings.TrimSpace(cfg.GatewayToken) == "" {
			return fmt.Errorf("in prod GATEWAY_TOKEN must be set when TRUST_GATEWAY_HEADERS is on")
		}
	}
	return nil
}

type Hours time.Duration

// Decode implements envconfig.Decoder.
func (h *Hours) Decode(value string) error {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		*h = Hours(time.Duration(n * float64(time.Hour)))
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("expected hours or a duration, got %q", value)
	}
	*h = Hours(d)
	return nil
}
