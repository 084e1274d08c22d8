// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are read from an fs.FS (usually an embed.FS) and follow the
// naming convention {version}_{description}.sql, for example
// "001_create_sessions.sql". Each migration runs in its own transaction
// together with its schema_migrations bookkeeping row, so a failed migration
// leaves no trace.
//
//	manager := migration.NewManager(migrations.FS, migration.NewScanner(), migration.NewSQLiteExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
