// Package history persists a record of past pipeline invocations. Writes
// are best effort: history must never fail a build.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/biblecomputer/bible/internal/pipeline"
)

// Record is one finished pipeline invocation.
type Record struct {
	ID        string
	Command   string
	Signature string
	Outcome   string
	Started   time.Time
	Finished  time.Time
}

// Store is a SQLite-backed build history.
// Use ":memory:" for tests or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the history database and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		signature TEXT,
		outcome TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_command ON builds(command);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Append records a finished report.
func (s *Store) Append(ctx context.Context, r *pipeline.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO builds (id, command, signature, outcome, started, finished, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Command, r.Signature, string(r.Outcome),
		r.Start.UnixMilli(), r.End.UnixMilli(), r.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, command, signature, outcome, started, finished FROM builds ORDER BY started DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("query build history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Command, &r.Signature, &r.Outcome, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		r.Started = time.UnixMilli(started)
		r.Finished = time.UnixMilli(finished)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LastSuccess returns the most recent successful record for a command, if
// any.
func (s *Store) LastSuccess(ctx context.Context, command string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, command, signature, outcome, started, finished FROM builds WHERE command = ? AND outcome = ? ORDER BY started DESC LIMIT 1",
		command, string(pipeline.OutcomeSuccess))

	var r Record
	var started, finished int64
	err := row.Scan(&r.ID, &r.Command, &r.Signature, &r.Outcome, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last success: %w", err)
	}
	r.Started = time.UnixMilli(started)
	r.Finished = time.UnixMilli(finished)
	return &r, nil
}
