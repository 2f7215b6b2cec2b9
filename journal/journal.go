// Package journal records per-chunk batch outcomes in SQLite so an
// aborted overnight run can be resumed by eye: which chunks made it,
// which one failed, and why. It records results only — remote job state
// lives solely on the portal's monitoring page.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Outcome of one chunk run.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one chunk's result.
type Entry struct {
	ID        int64
	ChunkPath string
	Artifact  string
	Outcome   string
	Detail    string
	StartedAt time.Time
	EndedAt   time.Time
}

// Journal writes chunk results. Journaling failures are logged and
// swallowed: a broken journal must never abort the batch.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to the SQLite database at path. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn("journal: WAL not enabled", "error", err)
	}
	j := &Journal{db: db, log: logger}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunk_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_path TEXT NOT NULL,
			artifact TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores one chunk result. Never returns an error to the caller.
func (j *Journal) Record(ctx context.Context, e Entry) {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO chunk_runs (chunk_path, artifact, outcome, detail, started_at, ended_at)
		VALUES (?,?,?,?,?,?)`,
		e.ChunkPath, e.Artifact, e.Outcome, e.Detail, e.StartedAt.UTC(), e.EndedAt.UTC())
	if err != nil {
		j.log.Error("journal: record failed", "artifact", e.Artifact, "error", err)
	}
}

// List returns every recorded run, oldest first.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, chunk_path, artifact, outcome, detail, started_at, ended_at
		FROM chunk_runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ChunkPath, &e.Artifact, &e.Outcome, &e.Detail, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
