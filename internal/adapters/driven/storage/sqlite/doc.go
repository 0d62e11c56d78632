// Package sqlite provides a SQLite-backed implementation of the run
// store and message cache ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. A single
// database connection backs both interfaces:
//
//   - RunStore: run records and their append-only query, message, chunk,
//     term-expansion and thread histories
//   - MessageCache: the global insert-if-absent message dedup cache
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory and embedded at compile time.
//
// # Data Location
//
// By default, the database is stored at ~/.mailsleuth/data/mailsleuth.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
