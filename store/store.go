// Package store persists completed call records in a local SQLite database
// for after-the-fact review and reporting.
package store

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store wraps the audit database.
type Store struct {
	db *sql.DB
}

// New opens the audit database under the given data directory and ensures
// the schema exists.
func New(ctx context.Context, dataDir string) (*Store, error) {
	dsn := filepath.Join(dataDir, "velora.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audit database %s", dsn)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to ping audit database")
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS call_record (
		call_sid TEXT PRIMARY KEY,
		caller_phone TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		turn_count INTEGER NOT NULL,
		transcript TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_call_record_started_at ON call_record (started_at);
	`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to migrate audit schema")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
