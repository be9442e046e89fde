// Package storage persists the local permission decision audit trail.
// The engine owns all session state; the only thing worth keeping on
// this side is a record of what the operator decided and when.
package storage

import (
	"database/sql"
	"log"
	"sync"

	// Pure-Go SQLite driver, imported for its driver registration.
	// No CGO keeps cross-compilation and testing easy.
	_ "modernc.org/sqlite"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// SQLiteStore records permission decisions in a local SQLite database.
// It creates the database and tables on first use and supports
// concurrent access through internal locking.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// It initializes the schema if the tables don't exist. Use ":memory:"
// for an in-memory database (useful for testing).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	log.Printf("storage: opening audit database at %s", path)

	// busy_timeout covers concurrent access from a second CLI process
	// inspecting the audit while a session is attached.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAuditOpenFailed, "open audit database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeAuditOpenFailed, "ping audit database", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
