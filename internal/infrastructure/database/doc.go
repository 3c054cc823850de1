// Package database provides the SQLite store for the biometric station.
//
// The store is small: the capture log (verdicts, recoveries, saved images)
// and the schema_migrations bookkeeping table. It runs in WAL mode with a
// single writer connection.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version ships YYYYMMDD_HHMMSS_name.up.sql
// and a matching .down.sql.
package database
