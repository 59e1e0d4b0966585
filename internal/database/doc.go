// Package database provides the local store for the reading tracker.
//
// # Architecture
//
// The database layer is organized into per-table sub-packages:
//
//	database/
//	├── database.go      # Connection setup, schema versioning, write arbiter
//	├── watch.go         # Change hub and reactive query streams
//	├── books/           # Shelved books and reading statistics
//	├── quotes/          # Quotes and notes attached to books
//	└── sessions/        # Reading sittings
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./readstack.db", logger)
//
//	booksRepo := books.NewRepository(db)
//	quotesRepo := quotes.NewRepository(db)
//
//	book, err := booksRepo.Get(ctx, "/works/OL123W")
//
// # Writes and Watches
//
// Every write goes through Database.Write, which serializes writers behind
// one lock and runs the callback in a transaction. After commit the touched
// tables are published on the Hub, and every Watch over those tables re-runs
// its query. Watches emit once on subscription and then only when the result
// differs from the previous emission.
//
// # Schema Versioning
//
// The schema_info table holds a single version row. When the stored version
// differs from SchemaVersion, all tables are dropped and recreated empty.
package database
