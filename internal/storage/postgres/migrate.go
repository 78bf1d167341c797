package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	// lib/pq registers the "postgres" database/sql driver used by goose.
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// MigrationFS embeds the SQL migrations applied by cmd/migrate and the store tests.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

const migrationsDir = "migrations"

// Migrate applies the embedded migrations in the given direction ("up" or "down")
// against the database at connString.
func Migrate(ctx context.Context, connString, direction string) error {
	if connString == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return MigrateDB(ctx, db, direction)
}

// MigrateDB applies the embedded migrations using an existing database handle.
func MigrateDB(ctx context.Context, db *sql.DB, direction string) error {
	goose.SetBaseFS(MigrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch direction {
	case "up":
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	default:
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	return nil
}
