package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/db"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run executes a goose command against the embedded state-store migrations.
func Run(ctx context.Context, sqlDB *sql.DB, driver string, command string, args ...string) error {
	if sqlDB == nil {
		return fmt.Errorf("db is required")
	}

	dialect, err := dialectFor(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, sqlDB, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// EnsureStateSchema brings the client_state table up to date before the store is used.
func EnsureStateSchema(ctx context.Context, client *db.Client, logg *logger.Logger) error {
	if client == nil {
		return fmt.Errorf("db client is required")
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "driver", client.Driver())
		logg.Info(ctx, "running state store migrations")
	}

	if err := Run(ctx, sqlDB, client.Driver(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	return nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case config.StateBackendSQLite, "":
		return "sqlite3", nil
	case config.StateBackendPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("no migration dialect for driver %q", driver)
}
