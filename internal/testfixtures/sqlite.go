package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/collab-sessions/internal/persistence"
	"github.com/example/collab-sessions/internal/persistence/memory"
	"github.com/example/collab-sessions/internal/persistence/sqlite"
)

// StoreHarness exposes the repositories of one storage backend.
type StoreHarness struct {
	Name      string
	Sessions  persistence.SessionRepository
	Reminders persistence.ReminderRepository
	Grants    persistence.GrantRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a StoreHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "sessions.db")

	ctx := context.Background()
	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StoreHarness{
		Name:      "sqlite",
		Sessions:  storage.Sessions,
		Reminders: storage.Reminders,
		Grants:    storage.Grants,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness constructs a StoreHarness over the in-process store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	store := memory.New()
	return &StoreHarness{
		Name:      "memory",
		Sessions:  store,
		Reminders: store,
		Grants:    store,
	}
}

// ForEachStore runs fn once per backend as a parallel subtest, so repository
// behaviour is asserted identically for SQLite and the in-process store.
func ForEachStore(t *testing.T, fn func(t *testing.T, h *StoreHarness)) {
	t.Helper()

	backends := []struct {
		name string
		open func(testing.TB) *StoreHarness
	}{
		{"sqlite", NewSQLiteHarness},
		{"memory", NewMemoryHarness},
	}
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			t.Parallel()
			fn(t, backend.open(t))
		})
	}
}
