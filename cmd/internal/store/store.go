// Package store is the durable local storage of the engine: a small
// SQLite-backed record store holding the current credential, scope, and
// live-session records across restarts.
//
// Records are independent JSON blobs keyed by name. A missing or
// unparseable record is treated as absence by callers; the store itself
// never interprets record bodies.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record names. They mirror the upstream local-storage keys.
const (
	RecordCredential = "token"
	RecordScope      = "scope"
	RecordLive       = "currentLive"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	name       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store is a process-local record store. Writes are serialized; SQLite
// handles concurrent reads.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the store at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the record body, with found=false when the record does not exist.
func (s *Store) Get(ctx context.Context, name string) (body []byte, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE name = ?`, name)
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get record %q: %w", name, err)
	}
	return body, true, nil
}

// Put inserts or replaces the record body.
func (s *Store) Put(ctx context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("put record %q: store closed", name)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, body, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put record %q: %w", name, err)
	}
	return nil
}

// Delete removes the record; deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("delete record %q: store closed", name)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete record %q: %w", name, err)
	}
	return nil
}

// Close releases the underlying database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
