// Package journal provides a SQLite-backed record of ingestion runs. Every
// ingest writes one row describing what was processed and how it went, so
// `semdex runs` can answer "what did we index, when, and did it work"
// without touching the vector store.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status classifies the outcome of an ingestion run.
type Status string

const (
	// StatusOK means every document was ingested.
	StatusOK Status = "ok"
	// StatusPartial means some documents failed but chunks were written.
	StatusPartial Status = "partial"
	// StatusFailed means the run produced no chunks.
	StatusFailed Status = "failed"
)

// Run is one recorded ingestion run.
type Run struct {
	// ID is the journal row ID, assigned on record.
	ID int64
	// Source is the ingested path.
	Source string
	// Collection is the target collection.
	Collection string
	// Mode is "documents" or "agents".
	Mode string
	// Documents is the number of documents processed.
	Documents int
	// Failed is the number of documents that failed.
	Failed int
	// Chunks is the number of chunks written.
	Chunks int
	// Status is the run's outcome.
	Status Status
	// StartedAt is when the run began.
	StartedAt time.Time
	// Duration is how long the run took.
	Duration time.Duration
}

// Journal persists and lists ingestion runs. Implementations must be safe
// for concurrent use.
type Journal interface {
	// Record persists one finished run.
	Record(ctx context.Context, run Run) error
	// Recent returns the most recent n runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the journal.
	Close() error
}

// SQLiteJournal is a Journal backed by a local SQLite database.
type SQLiteJournal struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the run journal database. It
// resolves to ~/.semdex/journal.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("journal: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".semdex")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("journal: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "journal.db"), nil
}

// Open opens (or creates) a SQLiteJournal at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteJournal, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// migrate creates the schema if it does not already exist.
func (j *SQLiteJournal) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    source       TEXT    NOT NULL,
    collection   TEXT    NOT NULL,
    mode         TEXT    NOT NULL,
    documents    INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    chunks       INTEGER NOT NULL,
    status       TEXT    NOT NULL CHECK(status IN ('ok','partial','failed')),
    started_at   INTEGER NOT NULL, -- Unix timestamp (seconds)
    duration_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started
    ON runs (started_at);
`
	if _, err := j.db.Exec(ddl); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Record persists one finished run.
func (j *SQLiteJournal) Record(ctx context.Context, run Run) error {
	const q = `
INSERT INTO runs (source, collection, mode, documents, failed, chunks, status, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, q,
		run.Source, run.Collection, run.Mode,
		run.Documents, run.Failed, run.Chunks,
		string(run.Status), run.StartedAt.Unix(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n runs, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, source, collection, mode, documents, failed, chunks, status, started_at, duration_ms
FROM   runs
ORDER  BY started_at DESC, id DESC
LIMIT  ?`

	rows, err := j.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var ts, durMS int64
		if err := rows.Scan(&r.ID, &r.Source, &r.Collection, &r.Mode, &r.Documents, &r.Failed, &r.Chunks, &status, &ts, &durMS); err != nil {
			return nil, fmt.Errorf("journal: recent scan: %w", err)
		}
		r.Status = Status(status)
		r.StartedAt = time.Unix(ts, 0)
		r.Duration = time.Duration(durMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}
	return runs, nil
}

// Close releases the database connection pool.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

// StatusFor derives a run status from its counts.
func StatusFor(documents, failed, chunks int) Status {
	switch {
	case chunks == 0 && failed > 0:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}
