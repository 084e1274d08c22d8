package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/collab-sessions/internal/config"
	"github.com/example/collab-sessions/internal/identity"
	"github.com/example/collab-sessions/internal/logging"
	"github.com/example/collab-sessions/internal/persistence/sqlite"
)

const serviceName = "collab-sessions"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg         config.Config
	logger      *slog.Logger
	idGenerator func() string
}

func newRootCommand(loadConfig func() (config.Config, error), logOutput io.Writer) *cobra.Command {
	a := &app{idGenerator: uuid.NewString}

	root := &cobra.Command{
		Use:          "sessions",
		Short:        "Schedule one-to-one sessions between collaborators",
		Long:         `sessions runs the session scheduling API and the maintenance tasks around it: schema migrations, collaboration grant imports and development tokens.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.NewLogger(logOutput, cfg.LogLevel).With("service", serviceName)
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newGrantsCommand(a),
		newTokenCommand(a),
	)
	return root
}

// openStorage opens the database and brings its schema up to date.
func (a *app) openStorage(ctx context.Context) (*sqlite.Storage, error) {
	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(a.cfg.SQLitePath), a.logger)
	if err != nil {
		return nil, err
	}
	if err := runDatabaseMigrations(ctx, storage, a.logger); err != nil {
		return nil, errors.Join(err, storage.Close())
	}
	return storage, nil
}

func (a *app) closeStorage(storage *sqlite.Storage) {
	if err := storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func (a *app) identityConfig() identity.Config {
	return identity.Config{
		Secret:   a.cfg.AuthSecret,
		Issuer:   a.cfg.AuthIssuer,
		Audience: a.cfg.AuthAudience,
	}
}
