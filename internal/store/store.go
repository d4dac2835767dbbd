// Package store provides SQLite persistence for conversations, messages,
// CRM records, usage counters and agent configuration. The database is the
// only shared mutable resource in the system; every invariant (one active
// conversation per lead, inbound dedup, quota bounds) is enforced here with
// a single statement rather than check-then-write.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database handle. Components receive it by injection;
// there is no package-level singleton.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Serialize writers through one connection to avoid database locked
	// errors under concurrent webhook tasks.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the raw handle for components that run their own statements
// (quota ledger, tool executors).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping reports store reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
