// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists finished runs and their artifacts in a local
// SQLite database so past batches can be listed and audited.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

const (
	dbFile       = "formflow.db"
	defaultLimit = 20

	// timeLayout has a fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates dir/formflow.db and its schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source_path TEXT NOT NULL,
			asset_id TEXT,
			records INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			state TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			path TEXT,
			job_uri TEXT NOT NULL,
			download_uri TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores run and its artifacts in one transaction. Recording the
// same run id again replaces the earlier entry. Artifact locations are
// stored without their signed query strings.
func (s *Store) Record(ctx context.Context, run types.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clearing artifacts of %s: %w", run.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, kind, source_path, asset_id, records, started_at, finished_at, state, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.SourcePath, nullString(run.AssetID), run.Records,
		formatTime(run.StartedAt), nullString(formatTime(run.FinishedAt)), string(run.State), nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for _, a := range run.Artifacts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (run_id, idx, path, job_uri, download_uri) VALUES (?, ?, ?, ?, ?)`,
			run.ID, a.Index, nullString(a.Path), httputil.Redact(a.JobURI), httputil.Redact(a.DownloadURI),
		)
		if err != nil {
			return fmt.Errorf("inserting artifact %d of %s: %w", a.Index, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first, with their artifacts in
// record order. A non-positive limit uses the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, source_path, asset_id, records, started_at, finished_at, state, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var (
			r                         types.Run
			kind, state, started      string
			assetID, finished, errMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &r.SourcePath, &assetID, &r.Records, &started, &finished, &state, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Kind = types.JobKind(kind)
		r.State = types.RunState(state)
		r.AssetID = assetID.String
		r.Error = errMsg.String
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished.String)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		artifacts, err := s.artifacts(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Artifacts = artifacts
	}
	return runs, nil
}

func (s *Store) artifacts(ctx context.Context, runID string) ([]types.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, path, job_uri, download_uri FROM artifacts WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.Artifact
	for rows.Next() {
		var (
			a    types.Artifact
			path sql.NullString
		)
		if err := rows.Scan(&a.Index, &path, &a.JobURI, &a.DownloadURI); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		a.Path = path.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
