// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are read from an fs.FS, normally an embedded directory, and
// follow the naming convention {version}_{description}.sql (for example
// "001_initial_schema.sql"). Applied versions are tracked in the
// schema_migrations table together with the file checksum, so a file that is
// edited after it was applied is reported instead of silently skipped.
//
// Example usage:
//
//	manager := migration.NewManager(db, schemaFS, "schema", logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
