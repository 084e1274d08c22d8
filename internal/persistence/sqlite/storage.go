package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/collab-sessions/internal/persistence/sqlite/migration"
	"github.com/example/collab-sessions/internal/persistence/sqlite/migrations"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool      *ConnectionPool
	logger    *slog.Logger
	Sessions  *SessionRepository
	Reminders *ReminderRepository
	Grants    *GrantRepository
}

// Open connects to the database. Call Migrate before serving traffic.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:      pool,
		logger:    logger,
		Sessions:  NewSessionRepository(pool),
		Reminders: NewReminderRepository(pool),
		Grants:    NewGrantRepository(pool),
	}, nil
}

// Migrator returns a manager over the embedded schema migrations.
func (s *Storage) Migrator() *migration.Manager {
	return migration.NewManager(migrations.FS, migration.NewScanner(), migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.Migrator().Run(ctx); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() error {
	return s.pool.Close()
}
