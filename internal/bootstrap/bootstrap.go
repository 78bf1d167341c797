// Package bootstrap wires the runtime dependencies of the auth API: the
// Postgres credential store, optional Redis for lockout counters, the audit
// emitter, and the security primitives composed into authn.Service.
//
// Initialization order is Postgres, audit emitter, Redis, primitives, service.
// Postgres and the signing key are required. Redis is only dialled when
// LOCKOUT_ENABLED is set. Without Kafka, audit events stream to the log.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/audit"
	"github.com/otherjamesbrown/mfa-auth-service/internal/authn"
	"github.com/otherjamesbrown/mfa-auth-service/internal/config"
	"github.com/otherjamesbrown/mfa-auth-service/internal/security"
	"github.com/otherjamesbrown/mfa-auth-service/internal/storage/postgres"
)

// Runtime bundles initialized dependencies. Fields remain valid until Close.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Postgres *postgres.Store
	Redis    *redis.Client            // nil unless lockout is enabled
	Lockout  *security.LockoutTracker // nil unless lockout is enabled
	Audit    audit.Emitter
	Tokens   *security.TokenIssuer
	Auth     *authn.Service
}

// Initialize wires dependencies from cfg. The returned Runtime must be closed.
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pgStore, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Postgres: pgStore,
		Audit:    newAuditEmitter(cfg, logger),
	}

	if cfg.LockoutEnabled {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rt.Redis.Ping(pingCtx).Err(); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}

		rt.Lockout = security.NewLockoutTracker(rt.Redis, security.LockoutConfig{
			MaxAttempts:     cfg.LockoutMaxAttempts,
			Window:          time.Duration(cfg.LockoutWindowMinutes) * time.Minute,
			LockoutDuration: time.Duration(cfg.LockoutDurationMinutes) * time.Minute,
		})
		logger.Info("lockout tracking enabled", zap.Int("max_attempts", cfg.LockoutMaxAttempts))
	} else {
		logger.Info("lockout tracking disabled")
	}

	tokens, err := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("bootstrap token issuer: %w", err)
	}
	rt.Tokens = tokens

	deps := authn.Dependencies{
		Store:  pgStore,
		Hasher: security.NewPasswordHasher(cfg.BcryptCost),
		TOTP:   security.NewTOTPEngine(cfg.TOTPIssuer),
		Tokens: tokens,
		Audit:  rt.Audit,
		Logger: logger,
	}
	if rt.Lockout != nil {
		deps.Lockout = rt.Lockout
	}
	svc, err := authn.NewService(deps)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("bootstrap auth service: %w", err)
	}
	rt.Auth = svc

	return rt, nil
}

func newAuditEmitter(cfg *config.Config, logger *zap.Logger) audit.Emitter {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		logger.Info("Kafka not configured, using logger emitter for audit events")
		return audit.NewLoggerEmitter(logger)
	}
	emitter, err := audit.NewKafkaEmitter(audit.KafkaConfig{
		Brokers:  brokers,
		Topic:    cfg.KafkaTopic,
		ClientID: cfg.KafkaClientID,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize Kafka emitter, falling back to logger", zap.Error(err))
		return audit.NewLoggerEmitter(logger)
	}
	logger.Info("using Kafka emitter for audit events", zap.String("topic", cfg.KafkaTopic))
	return emitter
}

// Close releases resources in reverse initialization order. It returns the
// first error encountered but keeps closing the rest.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if kafkaEmitter, ok := rt.Audit.(*audit.KafkaEmitter); ok {
		if err := kafkaEmitter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		rt.Redis = nil
	}
	if rt.Postgres != nil {
		rt.Postgres.Close()
		rt.Postgres = nil
	}
	return firstErr
}

// ReadinessProbe checks Postgres and, when configured, Redis.
func (rt *Runtime) ReadinessProbe(ctx context.Context) error {
	if rt.Postgres != nil {
		if err := rt.Postgres.Ping(ctx); err != nil {
			return fmt.Errorf("postgres not ready: %w", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}
