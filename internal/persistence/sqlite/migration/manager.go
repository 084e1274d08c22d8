package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"
)

// Manager decides which migrations are pending and applies them in order.
type Manager struct {
	fsys     fs.FS
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires a manager. A nil logger discards output.
func NewManager(fsys fs.FS, scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		fsys:     fsys,
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
		now:      time.Now,
	}
}

// Run applies every pending migration and returns how many were applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)
	for i, migration := range status.Pending {
		started := m.now()
		if err := m.executor.Apply(ctx, migration, started); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, NewMigrationError(migration.Version, migration.FilePath, "apply",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", time.Since(started),
		)
	}
	return len(status.Pending), nil
}

// Status compares the migration files with schema_migrations.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	available, err := m.scanner.Scan(m.fsys)
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize version table: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[versionNumber(a.Version)] = a
	}

	status := &Status{Applied: applied}
	for _, migration := range available {
		if _, ok := appliedByVersion[versionNumber(migration.Version)]; ok {
			continue
		}
		status.Pending = append(status.Pending, migration)
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence rejects gaps, applied versions without a file, and files
// edited after they were applied. Both inputs must be sorted by version.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	files := make(map[int]Migration, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		if n < 0 {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence", ErrInvalidVersion)
		}
		if i > 0 {
			if prev := versionNumber(available[i-1].Version); n != prev+1 {
				return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
					fmt.Errorf("%w: missing version %03d", ErrVersionConflict, prev+1))
			}
		}
		files[n] = migration
	}

	for _, a := range applied {
		file, ok := files[versionNumber(a.Version)]
		if !ok {
			return NewMigrationError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version has no migration file", ErrVersionConflict))
		}
		if a.Checksum != "" && a.Checksum != file.Checksum {
			return NewMigrationError(a.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
