package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/collab-sessions/internal/persistence/sqlite"
	"github.com/example/collab-sessions/internal/persistence/sqlite/migration"
)

func newMigrateCommand(a *app) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if statusOnly {
				storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(a.cfg.SQLitePath), a.logger)
				if err != nil {
					return err
				}
				defer a.closeStorage(storage)
				status, err := storage.Migrator().Status(ctx)
				if err != nil {
					return fmt.Errorf("read migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), status)
				return nil
			}

			storage, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer a.closeStorage(storage)
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Report applied and pending migrations without applying them")
	return cmd
}

// runDatabaseMigrations applies pending migrations and logs each phase.
func runDatabaseMigrations(ctx context.Context, storage *sqlite.Storage, logger *slog.Logger) error {
	logger.InfoContext(ctx, "initializing database migration system")
	manager := storage.Migrator()

	logger.InfoContext(ctx, "checking current database schema version")
	status, err := manager.Status(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read migration status", "error", err)
		return fmt.Errorf("read migration status: %w", err)
	}
	logger.InfoContext(ctx, "current database schema version",
		"version", status.CurrentVersion,
		"pending_count", len(status.Pending),
	)
	if len(status.Pending) == 0 {
		logger.InfoContext(ctx, "database schema is up to date")
		return nil
	}

	logger.InfoContext(ctx, "executing database migrations", "pending_count", len(status.Pending))
	start := time.Now()
	applied, err := manager.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "database migration failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	logger.InfoContext(ctx, "database migrations completed successfully",
		"applied_count", applied,
		"duration", time.Since(start),
	)
	return nil
}

func printMigrationStatus(w io.Writer, status *migration.Status) {
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(w, "current version: %s\n", current)
	for _, m := range status.Applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Description)
	}
}
