package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanner_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		files        fstest.MapFS
		wantVersions []string
		wantErr      error
	}{
		{
			name: "sorts numerically and skips other files",
			files: fstest.MapFS{
				"010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
				"002_create_table.sql":   {Data: []byte("CREATE TABLE t (a TEXT);")},
				"001_init.sql":           {Data: []byte("CREATE TABLE s (a TEXT);")},
				"README.md":              {Data: []byte("notes")},
				"nested/003_ignored.sql": {Data: []byte("SELECT 1;")},
			},
			wantVersions: []string{"001", "002", "010"},
		},
		{
			name: "rejects malformed file names",
			files: fstest.MapFS{
				"init.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects duplicate versions",
			files: fstest.MapFS{
				"001_a.sql": {Data: []byte("SELECT 1;")},
				"1_b.sql":   {Data: []byte("SELECT 2;")},
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "rejects comment only files",
			files: fstest.MapFS{
				"001_empty.sql": {Data: []byte("-- nothing here\n")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects unmatched parentheses",
			files: fstest.MapFS{
				"001_broken.sql": {Data: []byte("CREATE TABLE t (a TEXT;")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects unterminated strings",
			files: fstest.MapFS{
				"001_broken.sql": {Data: []byte("INSERT INTO t VALUES ('a);")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewScanner().Scan(tt.files)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan returned error: %v", err)
			}
			if len(got) != len(tt.wantVersions) {
				t.Fatalf("expected %d migrations, got %d", len(tt.wantVersions), len(got))
			}
			for i, want := range tt.wantVersions {
				if got[i].Version != want {
					t.Fatalf("position %d: expected version %s, got %s", i, want, got[i].Version)
				}
				if got[i].Checksum == "" {
					t.Fatalf("version %s has no checksum", want)
				}
			}
		})
	}
}

func TestScanner_Description(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"001_create_sessions.sql": {Data: []byte("-- Description: Sessions table\nCREATE TABLE s (a TEXT);")},
		"002_add_column.sql":      {Data: []byte("ALTER TABLE s ADD COLUMN b TEXT;")},
	}
	got, err := NewScanner().Scan(files)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if got[0].Description != "Sessions table" {
		t.Fatalf("expected description from comment, got %q", got[0].Description)
	}
	if got[1].Description != "add column" {
		t.Fatalf("expected description from file name, got %q", got[1].Description)
	}
}

func TestScannerAt_ReadsSubdirectory(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"sql/001_init.sql": {Data: []byte("CREATE TABLE s (a TEXT);")},
	}
	got, err := NewScannerAt("sql").Scan(files)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(got) != 1 || got[0].FilePath != "sql/001_init.sql" {
		t.Fatalf("unexpected migrations: %+v", got)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (x TEXT);\n\n-- second\nCREATE INDEX i ON a(x);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a(x)" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}
