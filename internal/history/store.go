// Package history persists analysis results in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("analysis not found")

// Record is one stored analysis, successful or failed.
type Record struct {
	ID               string
	File             string
	Provider         string
	Model            string
	Rows             int
	RemovedColumns   int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Raw              string
	Sanitized        string
	ReportJSON       string
	Digest           string
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// OK reports whether the analysis succeeded.
func (r *Record) OK() bool { return r.Error == "" }

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS analyses (
    id                TEXT PRIMARY KEY,
    file              TEXT NOT NULL DEFAULT '',
    provider          TEXT NOT NULL DEFAULT '',
    model             TEXT NOT NULL DEFAULT '',
    rows_count        INTEGER NOT NULL DEFAULT 0,
    removed_columns   INTEGER NOT NULL DEFAULT 0,
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens      INTEGER NOT NULL DEFAULT 0,
    raw               TEXT NOT NULL DEFAULT '',
    sanitized         TEXT NOT NULL DEFAULT '',
    report_json       TEXT NOT NULL DEFAULT '',
    digest            TEXT NOT NULL DEFAULT '',
    error             TEXT NOT NULL DEFAULT '',
    started_at        TEXT NOT NULL,
    finished_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_started ON analyses(started_at DESC);
`,
	},
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Pass ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if r.ID == "" {
		return errors.New("record id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO analyses(id, file, provider, model, rows_count, removed_columns,
            prompt_tokens, completion_tokens, total_tokens, raw, sanitized, report_json,
            digest, error, started_at, finished_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            prompt_tokens     = excluded.prompt_tokens,
            completion_tokens = excluded.completion_tokens,
            total_tokens      = excluded.total_tokens,
            raw               = excluded.raw,
            sanitized         = excluded.sanitized,
            report_json       = excluded.report_json,
            digest            = excluded.digest,
            error             = excluded.error,
            finished_at       = excluded.finished_at
    `,
		r.ID, r.File, r.Provider, r.Model, r.Rows, r.RemovedColumns,
		r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.Raw, r.Sanitized, r.ReportJSON,
		r.Digest, r.Error, formatTime(r.StartedAt), formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `id, file, provider, model, rows_count, removed_columns,
    prompt_tokens, completion_tokens, total_tokens, raw, sanitized, report_json,
    digest, error, started_at, finished_at`

// Get returns one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM analyses WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns the newest records first. Text columns are left empty.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM analyses ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		r.Raw, r.Sanitized, r.ReportJSON = "", "", ""
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	r := &Record{}
	var started, finished string
	err := row.Scan(&r.ID, &r.File, &r.Provider, &r.Model, &r.Rows, &r.RemovedColumns,
		&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Raw, &r.Sanitized, &r.ReportJSON,
		&r.Digest, &r.Error, &started, &finished)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(started)
	r.FinishedAt, _ = parseTime(finished)
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	for _, l := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
