// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists ladder runs in SQLite and indexes their results
// for full-text search.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/ksuid"

	"github.com/pdiddy/civictrace/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "civictrace.db"

	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run database.
type Store struct {
	db         *sql.DB
	dataDir    string
	maxResults int
}

// NewStore opens or creates the run database at dataDir/index/civictrace.db
// and creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating index directory")
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		dataDir:    cfg.DataDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
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
			query TEXT NOT NULL,
			requirements TEXT,
			annotations TEXT,
			coverage REAL,
			tier_hit INTEGER,
			latency_ms INTEGER,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT,
			link TEXT,
			snippet TEXT,
			source TEXT,
			kind TEXT,
			confidence REAL,
			retrieved_at TEXT,
			tier_hit INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_source ON results(source)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS gate_hits (
			source TEXT NOT NULL,
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gate_hits_source_at ON gate_hits(source, at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "executing schema statement")
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='results_fts'`,
	).Scan(&ftsExists); err != nil {
		return errors.Wrap(err, "checking FTS table")
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE results_fts USING fts5(title, snippet, content=results, content_rowid=rowid)`,
			`CREATE TRIGGER results_ai AFTER INSERT ON results BEGIN
				INSERT INTO results_fts(rowid, title, snippet) VALUES (new.rowid, new.title, new.snippet);
			END`,
			`CREATE TRIGGER results_ad AFTER DELETE ON results BEGIN
				INSERT INTO results_fts(results_fts, rowid, title, snippet) VALUES('delete', old.rowid, old.title, old.snippet);
			END`,
			`CREATE TRIGGER results_au AFTER UPDATE ON results BEGIN
				INSERT INTO results_fts(results_fts, rowid, title, snippet) VALUES('delete', old.rowid, old.title, old.snippet);
				INSERT INTO results_fts(rowid, title, snippet) VALUES (new.rowid, new.title, new.snippet);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return errors.Wrap(err, "creating FTS infrastructure")
			}
		}
	}

	return nil
}

// SaveRun stores run and its results in one transaction. An empty run.ID is
// replaced by a new KSUID; a zero CreatedAt by the current time. The stored
// run is returned.
func (s *Store) SaveRun(ctx context.Context, run types.Run) (types.Run, error) {
	if run.ID == "" {
		run.ID = ksuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	reqJSON, err := json.Marshal(run.Requirements)
	if err != nil {
		return run, errors.Wrap(err, "encoding requirements")
	}
	annJSON, err := json.Marshal(run.Annotations)
	if err != nil {
		return run, errors.Wrap(err, "encoding annotations")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, requirements, annotations, coverage, tier_hit, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, string(reqJSON), string(annJSON),
		run.Result.Coverage, run.Result.TierHit, run.Result.Latency,
		formatTime(run.CreatedAt),
	)
	if err != nil {
		return run, errors.Wrapf(err, "inserting run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, position, title, link, snippet, source, kind, confidence, retrieved_at, tier_hit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for i, r := range run.Result.Results {
		_, err := stmt.ExecContext(ctx,
			run.ID, i, r.Title, r.Link, r.Snippet, r.Source, string(r.Kind),
			r.Confidence, formatTime(r.RetrievedAt), r.TierHit,
		)
		if err != nil {
			return run, errors.Wrapf(err, "inserting result %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return run, errors.Wrap(err, "committing run")
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less uses the store default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.query, r.coverage, r.tier_hit, r.created_at,
			(SELECT count(*) FROM results WHERE run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var out []types.RunSummary
	for rows.Next() {
		var sum types.RunSummary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Query, &sum.Coverage, &sum.TierHit, &created, &sum.ResultCount); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		sum.CreatedAt = parseTime(created)
		out = append(out, sum)
	}
	return out, errors.Wrap(rows.Err(), "iterating runs")
}

// GetRun loads a run with its results in their original order.
func (s *Store) GetRun(ctx context.Context, id string) (types.Run, error) {
	var (
		run              types.Run
		reqJSON, annJSON sql.NullString
		created          string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, requirements, annotations, coverage, tier_hit, latency_ms, created_at
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Query, &reqJSON, &annJSON,
		&run.Result.Coverage, &run.Result.TierHit, &run.Result.Latency, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return run, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return run, errors.Wrapf(err, "querying run %s", id)
	}
	run.CreatedAt = parseTime(created)
	if reqJSON.Valid && reqJSON.String != "" {
		if err := json.Unmarshal([]byte(reqJSON.String), &run.Requirements); err != nil {
			return run, errors.Wrap(err, "decoding requirements")
		}
	}
	if annJSON.Valid && annJSON.String != "" {
		if err := json.Unmarshal([]byte(annJSON.String), &run.Annotations); err != nil {
			return run, errors.Wrap(err, "decoding annotations")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, link, snippet, source, kind, confidence, retrieved_at, tier_hit
		FROM results WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return run, errors.Wrap(err, "querying results")
	}
	defer rows.Close()

	run.Result.Results = []types.SearchResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return run, err
		}
		run.Result.Results = append(run.Result.Results, r)
	}
	return run, errors.Wrap(rows.Err(), "iterating results")
}

// DeleteRun removes a run and its results.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner, extra ...any) (types.SearchResult, error) {
	var (
		r         types.SearchResult
		kind      string
		retrieved sql.NullString
		snippet   sql.NullString
	)
	dest := []any{&r.Title, &r.Link, &snippet, &r.Source, &kind, &r.Confidence, &retrieved, &r.TierHit}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return r, errors.Wrap(err, "scanning result")
	}
	r.Kind = types.SourceKind(kind)
	r.Snippet = snippet.String
	r.RetrievedAt = parseTime(retrieved.String)
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
