package migration

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"
)

type stubScanner struct {
	migrations []Migration
	err        error
}

func (s stubScanner) Scan(fs.FS) ([]Migration, error) {
	return s.migrations, s.err
}

type stubExecutor struct {
	applied  []AppliedMigration
	failOn   string
	executed []string
}

func (e *stubExecutor) InitializeVersionTable(context.Context) error { return nil }

func (e *stubExecutor) Apply(_ context.Context, m Migration, at time.Time) error {
	if m.Version == e.failOn {
		return errors.New("boom")
	}
	e.executed = append(e.executed, m.Version)
	e.applied = append(e.applied, AppliedMigration{Version: m.Version, AppliedAt: at, Checksum: m.Checksum})
	return nil
}

func (e *stubExecutor) AppliedMigrations(context.Context) ([]AppliedMigration, error) {
	return append([]AppliedMigration(nil), e.applied...), nil
}

func migrations(versions ...string) []Migration {
	out := make([]Migration, 0, len(versions))
	for _, v := range versions {
		out = append(out, Migration{Version: v, FilePath: v + "_m.sql", Checksum: "sum-" + v, SQL: "SELECT 1;"})
	}
	return out
}

func TestManager_RunAppliesPendingInOrder(t *testing.T) {
	t.Parallel()

	exec := &stubExecutor{applied: []AppliedMigration{{Version: "001", Checksum: "sum-001"}}}
	manager := NewManager(nil, stubScanner{migrations: migrations("001", "002", "003")}, exec, nil)

	count, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 applied, got %d", count)
	}
	if len(exec.executed) != 2 || exec.executed[0] != "002" || exec.executed[1] != "003" {
		t.Fatalf("unexpected execution order %v", exec.executed)
	}

	status, err := manager.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "003" || len(status.Pending) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManager_RunStopsAtFailure(t *testing.T) {
	t.Parallel()

	exec := &stubExecutor{failOn: "002"}
	manager := NewManager(nil, stubScanner{migrations: migrations("001", "002", "003")}, exec, nil)

	count, err := manager.Run(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var migrationErr *MigrationError
	if !errors.As(err, &migrationErr) || migrationErr.Version != "002" {
		t.Fatalf("expected MigrationError for 002, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 applied before failure, got %d", count)
	}
}

func TestManager_StatusValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   []Migration
		applied []AppliedMigration
		wantErr error
	}{
		{
			name:    "gap in sequence",
			files:   migrations("001", "003"),
			wantErr: ErrVersionConflict,
		},
		{
			name:    "applied version without file",
			files:   migrations("001"),
			applied: []AppliedMigration{{Version: "001"}, {Version: "002"}},
			wantErr: ErrVersionConflict,
		},
		{
			name:    "edited after apply",
			files:   migrations("001"),
			applied: []AppliedMigration{{Version: "001", Checksum: "other"}},
			wantErr: ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager := NewManager(nil, stubScanner{migrations: tt.files}, &stubExecutor{applied: tt.applied}, nil)
			if _, err := manager.Status(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestManager_ScanErrorPropagates(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, stubScanner{err: ErrInvalidMigrationFile}, &stubExecutor{}, nil)
	if _, err := manager.Run(context.Background()); !errors.Is(err, ErrInvalidMigrationFile) {
		t.Fatalf("expected scan error, got %v", err)
	}
}
