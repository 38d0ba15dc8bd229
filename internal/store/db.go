// Package store persists patterns, their embeddings, and operational metrics
// in a single SQLite database file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to command handlers.
var (
	// ErrStoreUnavailable wraps any failure to open, create, or reach the
	// database.
	ErrStoreUnavailable = errors.New("pattern store unavailable")

	// ErrAlreadyInitialized means Create was asked to initialize a store
	// that already exists.
	ErrAlreadyInitialized = errors.New("pattern store already initialized")
)

// DB wraps a sql.DB connection to the recall SQLite database.
type DB struct {
	conn *sql.DB
}

// Create initializes a brand-new store at the given path. It fails with
// ErrAlreadyInitialized when a database file is already present and never
// touches existing data. O_EXCL makes the existence check and the creation
// one atomic step, so two racing creates cannot both succeed.
func Create(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	f, err := os.OpenFile(dbPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, dbPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Open(dbPath)
}

// Open opens or creates the SQLite database at the given path.
// It creates the parent directory if it does not exist.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Enable foreign keys.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	db := &DB{conn: conn}

	// Run migrations on open.
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return db, nil
}

// memDBCounter distinguishes in-memory databases so each OpenInMemory call
// gets its own store.
var memDBCounter atomic.Uint64

// OpenInMemory opens an in-memory SQLite database, useful for testing.
func OpenInMemory() (*DB, error) {
	// Each pooled connection to a plain ":memory:" DSN is its own empty
	// database; a named shared-cache database keeps the pool coherent.
	dsn := fmt.Sprintf("file:recall-mem-%d?mode=memory&cache=shared", memDBCounter.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	db := &DB{conn: conn}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for advanced queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}
