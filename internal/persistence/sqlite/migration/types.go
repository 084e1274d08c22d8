package migration

import (
	"context"
	"io/fs"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes applied and pending migrations.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Scanner reads migrations from a file system.
type Scanner interface {
	Scan(fsys fs.FS) ([]Migration, error)
}

// Executor runs migrations against the database.
type Executor interface {
	// InitializeVersionTable creates schema_migrations if it does not exist.
	InitializeVersionTable(ctx context.Context) error
	// Apply runs the migration and records it in the same transaction.
	Apply(ctx context.Context, migration Migration, appliedAt time.Time) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}
