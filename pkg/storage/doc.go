// Package storage owns the relational schema and the database plumbing shared by the
// domain stores: opening a pool for Postgres (lib/pq) or SQLite (go-sqlite3), running
// dialect-expanded migrations, transactions, and translating driver constraint errors.
//
// Queries are written once with $N placeholders in order of appearance, which both
// drivers accept, and with timestamps supplied from Go rather than NOW().
//
//	db, dialect, err := storage.Open(ctx, storage.Options{Driver: "postgres", URL: url})
//	if err := storage.Migrate(ctx, db, dialect); err != nil { ... }
//
//	err := storage.WithTx(ctx, db, func(q storage.Querier) error {
//		// use q only
//	})
package storage
