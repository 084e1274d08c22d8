package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migration.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteExecutor_ApplyRecordsMigration(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	exec := NewSQLiteExecutor(db)
	ctx := context.Background()

	if err := exec.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable: %v", err)
	}
	if err := exec.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable must be idempotent: %v", err)
	}

	m := Migration{
		Version:  "001",
		FilePath: "001_people.sql",
		Checksum: "abc",
		SQL:      "CREATE TABLE people (id TEXT PRIMARY KEY);\nINSERT INTO people (id) VALUES ('p1');",
	}
	appliedAt := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	if err := exec.Apply(ctx, m, appliedAt); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&count); err != nil {
		t.Fatalf("query people: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}

	applied, err := exec.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "001" || applied[0].Checksum != "abc" || !applied[0].AppliedAt.Equal(appliedAt) {
		t.Fatalf("unexpected applied rows %+v", applied)
	}
}

func TestSQLiteExecutor_ApplyRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	exec := NewSQLiteExecutor(db)
	ctx := context.Background()
	if err := exec.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable: %v", err)
	}

	m := Migration{
		Version: "001",
		SQL:     "CREATE TABLE things (id TEXT);\nINSERT INTO missing_table VALUES (1);",
	}
	err := exec.Apply(ctx, m, time.Now())
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'things'`).Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected table creation to be rolled back, got %v", err)
	}
	applied, err := exec.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no recorded migrations, got %+v", applied)
	}
}

func TestManager_EndToEnd(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		"002_index.sql":  {Data: []byte("CREATE INDEX idx_a ON a(id);")},
	}
	manager := NewManager(files, NewScanner(), NewSQLiteExecutor(db), nil)

	count, err := manager.Run(context.Background())
	if err != nil || count != 2 {
		t.Fatalf("first run: count=%d err=%v", count, err)
	}
	count, err = manager.Run(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("second run must be a no-op: count=%d err=%v", count, err)
	}
}
