/*
Package sqlite provides the SQLite-backed document store.

PURPOSE:
  Implements core.DocumentStore with one row per concern. Each document
  (submissions ledger, casual-leave history, leave requests, warning
  counts, eligibility snapshot) is stored whole and replaced whole, the
  same granularity the owning services load and save at.

SCHEMA:
  documents(name TEXT PRIMARY KEY, body BLOB, updated_at TEXT)

CONCURRENCY:
  The store does not arbitrate between writers of the same document; the
  owning service's mutex does. WAL mode keeps concurrent readers of other
  documents from blocking.

USAGE:
  store, err := sqlite.New("./data/tracker.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: interface contract
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewtrack/attendance-engine/core"
)

// Store implements core.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ core.DocumentStore = (*Store)(nil)

// New opens (or creates) the database. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the document body, or (nil, nil) if it was never saved.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", name, err)
	}
	return body, nil
}

// Save replaces the document body.
func (s *Store) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, body, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save document %q: %w", name, err)
	}
	return nil
}
