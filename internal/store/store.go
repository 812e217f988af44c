// Package store persists jobs, runs, artifacts, reviews and the paper data
// model in SQLite. Data-model invariants (status enums, score bounds, span
// consistency, scope XOR, uniqueness) are enforced by the schema itself, not
// only by application code.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the requested row does not exist (or is
// soft-deleted).
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a uniqueness or check constraint rejects a
// write, or when a guarded status transition finds the row in another state.
var ErrConflict = fmt.Errorf("conflict")

// Store is a SQLite-backed persistence layer shared by the API and workers.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the database at path and initialises the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Concurrent workers share one file; a single connection sidesteps
	// SQLITE_BUSY without a retry loop.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// mapConstraintErr converts sqlite constraint violations to ErrConflict so
// callers can branch without parsing driver strings.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
