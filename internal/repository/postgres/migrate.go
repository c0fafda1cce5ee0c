package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "subscription_schema_migrations"

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(log.Named("goose"))
	goose.SetTableName(migrationsTable)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Infow("Database migrations applied")
	return nil
}
