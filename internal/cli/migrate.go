package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"notecard-review-service/internal/config"
	pgmigrations "notecard-review-service/internal/infra/postgres/migrations"
)

// errNoPostgres is returned when a schema command runs without postgres.url.
var errNoPostgres = errors.New("postgres url not configured")

// NewMigrateCmd applies or rolls back the Postgres schema of the progress store.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the progress store schema (or roll back the last group)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			if rollback {
				return rollbackMigrations(cmd.Context(), cfg, log)
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last applied migration group")
	return cmd
}

// withMigrator opens a bun connection for the configured database and hands
// an initialized migrator to fn.
func withMigrator(ctx context.Context, cfg config.Config, fn func(*migrate.Migrator) error) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations table: %w", err)
	}
	return fn(migrator)
}

// runMigrationsWithConfig brings the review tables up to date. serve calls it
// before opening the postgres store.
func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	return withMigrator(ctx, cfg, func(m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if group.IsZero() {
			slog.Info("review schema up to date")
			return nil
		}
		slog.Info("review schema migrated", "group", group.String())
		return nil
	})
}

func rollbackMigrations(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	return withMigrator(ctx, cfg, func(m *migrate.Migrator) error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		if group.IsZero() {
			log.Info("no migration group to roll back")
			return nil
		}
		log.Warn("review schema rolled back; stored progress tables were dropped", "group", group.String())
		return nil
	})
}
