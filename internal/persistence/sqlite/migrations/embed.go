// Package migrations holds the versioned SQLite schema.
package migrations

import "embed"

// FS contains the migration files, named {version}_{description}.sql.
//
//go:embed *.sql
var FS embed.FS
