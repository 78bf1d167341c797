// Command auth-api serves the MFA authentication HTTP API.
//
// It loads configuration from the environment, initializes the runtime
// (Postgres, optional Redis and Kafka), registers the auth routes and serves
// until SIGINT or SIGTERM, then drains in-flight requests for up to 10s.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/bootstrap"
	"github.com/otherjamesbrown/mfa-auth-service/internal/config"
	"github.com/otherjamesbrown/mfa-auth-service/internal/httpapi/auth"
	"github.com/otherjamesbrown/mfa-auth-service/internal/logging"
	"github.com/otherjamesbrown/mfa-auth-service/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(logging.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	defer func() { _ = logger.Sync() }()

	logger.Info("starting auth API",
		zap.String("env", cfg.Environment),
		zap.Int("port", cfg.HTTPPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to bootstrap runtime", zap.Error(err))
	}
	logger.Info("runtime dependencies initialized")

	srv := server.New(server.Options{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Debug:          cfg.Environment == "development",
		Readiness:      runtime.ReadinessProbe,
		RegisterRoutes: func(r chi.Router) {
			auth.RegisterRoutes(r, auth.Options{
				Service:     runtime.Auth,
				Verifier:    runtime.Tokens,
				Logger:      logger,
				ServiceName: cfg.ServiceName,
				Environment: cfg.Environment,
			})
		},
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("auth API server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		_ = runtime.Close(shutdownCtx)
		os.Exit(1)
	}
	if err := runtime.Close(shutdownCtx); err != nil {
		logger.Warn("failed to cleanly close runtime", zap.Error(err))
	}

	logger.Info("auth API stopped")
}
