// Package database provides SQLite connectivity for the gateway's local state.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Forward-only schema migrations recorded in schema_migrations
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file holds the API key pair and is chmod 0600
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
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are
// supplied through MigrationsFS, normally by importing the migrations package.
package database
