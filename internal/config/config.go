// Package config provides environment variable-based configuration loading.
//
// Purpose:
//
//	This package defines the service configuration structure and loads it from
//	environment variables using envconfig. Both binaries (auth-api, migrate)
//	share this configuration structure.
//
// Dependencies:
//   - github.com/kelseyhightower/envconfig: Environment variable parsing
//
// Key Responsibilities:
//   - Config struct defines all service configuration fields
//   - Load reads and validates environment variables
//   - MustLoad exits the process if configuration is invalid
//
// Debugging Notes:
//   - Required fields: DATABASE_URL, JWT_SECRET
//   - JWT_SECRET must be at least 32 bytes; there is no fallback key
//   - Lockout tracking is off unless LOCKOUT_ENABLED=true, which also requires REDIS_ADDR
//   - Kafka is optional (audit events are logged if KAFKA_BROKERS is empty)
//
// Thread Safety:
//   - Config struct is read-only after loading (safe for concurrent read access)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MinJWTSecretLength is the shortest signing secret accepted at startup.
const MinJWTSecretLength = 32

// ErrWeakJWTSecret is returned when JWT_SECRET is shorter than MinJWTSecretLength.
var ErrWeakJWTSecret = errors.New("config: JWT_SECRET must be at least 32 bytes")

// Config represents runtime configuration for the auth service binaries.
type Config struct {
	// ServiceName is emitted in logs, metrics, and the info endpoint.
	ServiceName string `envconfig:"SERVICE_NAME" default:"mfa-auth-service"`
	// HTTPPort is the port the HTTP server listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"5002"`
	// DatabaseURL is the Postgres connection string for the credential store.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// RedisAddr is the host:port of the Redis instance used for lockout counters.
	// Only consulted when LockoutEnabled is set.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
	// RedisPassword is the optional password for Redis authentication.
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	// RedisDB selects the logical Redis database index.
	RedisDB int `envconfig:"REDIS_DB" default:"0"`
	// LogLevel controls the zap level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Environment describes the deployment environment (development, staging, production).
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// JWTSecret is the HMAC key used to sign session tokens.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// JWTIssuer is set as the iss claim and checked on verification.
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"mfa-auth-service"`
	// TokenTTL is the validity window of issued session tokens.
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"2h"`
	// TOTPIssuer labels the account in authenticator apps.
	TOTPIssuer string `envconfig:"TOTP_ISSUER" default:"MFA Auth Service"`
	// BcryptCost is the bcrypt work factor for password hashes.
	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses.
	// If empty, audit events are logged instead of sent to Kafka.
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""`
	// KafkaTopic is the topic for audit events.
	KafkaTopic string `envconfig:"KAFKA_TOPIC" default:"audit.auth"`
	// KafkaClientID is the client ID used when connecting to Kafka.
	KafkaClientID string `envconfig:"KAFKA_CLIENT_ID" default:"mfa-auth-service"`

	// Lockout configuration. When enabled, a correct credential is refused
	// while the identity is locked.
	LockoutEnabled         bool `envconfig:"LOCKOUT_ENABLED" default:"false"`
	LockoutMaxAttempts     int  `envconfig:"LOCKOUT_MAX_ATTEMPTS" default:"5"`
	LockoutWindowMinutes   int  `envconfig:"LOCKOUT_WINDOW_MINUTES" default:"15"`
	LockoutDurationMinutes int  `envconfig:"LOCKOUT_DURATION_MINUTES" default:"15"`

	// CORSAllowedOrigins lists origins allowed to call the API from a browser.
	// "*" allows any origin.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads environment variables into Config, applying defaults where necessary.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad returns Config or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Validate checks constraints envconfig tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if len(strings.TrimSpace(c.JWTSecret)) < MinJWTSecretLength {
		return ErrWeakJWTSecret
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.LockoutEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("config: LOCKOUT_ENABLED requires REDIS_ADDR")
	}
	return nil
}

// KafkaBrokerList splits KafkaBrokers into trimmed, non-empty addresses.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MigrateConfig is the subset of configuration read by cmd/migrate.
type MigrateConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// LoadMigrate reads the migration configuration. Unlike Load it does not
// require JWT_SECRET.
func LoadMigrate() (*MigrateConfig, error) {
	var cfg MigrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("config: DATABASE_URL is required")
	}
	return &cfg, nil
}
