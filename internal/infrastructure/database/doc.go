// Package database provides SQLite connectivity for the pilight gateway.
//
// This package manages:
//   - The connection, in WAL mode with a busy timeout and a single writer
//   - Schema migrations read from an fs.FS (the migrations package embeds them)
//   - Health checks for the service's startup sequence
//
// The gateway stores two things here: catalog revisions (catalogstore) and
// rejected payloads (audit).
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive. New columns must be NULLABLE or carry a DEFAULT,
// and each YYYYMMDD_HHMMSS_name.up.sql ships with a matching .down.sql.
package database
