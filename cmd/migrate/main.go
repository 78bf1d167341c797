// Command migrate applies the embedded credential store migrations.
//
//	go run ./cmd/migrate -direction up
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/config"
	"github.com/otherjamesbrown/mfa-auth-service/internal/logging"
	"github.com/otherjamesbrown/mfa-auth-service/internal/storage/postgres"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	timeout := flag.Duration("timeout", 2*time.Minute, "Maximum time to spend applying migrations")
	flag.Parse()

	cfg, err := config.LoadMigrate()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		ServiceName: "mfa-auth-migrate",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info("applying migrations", zap.String("direction", *direction))
	if err := postgres.Migrate(ctx, cfg.DatabaseURL, *direction); err != nil {
		logger.Error("migration failed", logging.RedactedString("database_url", cfg.DatabaseURL), zap.Error(err))
		cancel()
		os.Exit(1)
	}
	logger.Info("migrations applied", zap.String("direction", *direction))
}
