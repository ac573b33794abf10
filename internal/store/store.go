// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store keeps the history of task runs and the records each run
// kept in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-digest/pkg/types"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
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
			task TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			fetched INTEGER NOT NULL,
			kept INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task, started_at)`,
		`CREATE TABLE IF NOT EXISTS records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			url TEXT,
			published_at TEXT,
			authors TEXT,
			abstract TEXT,
			categories TEXT,
			metadata TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_url ON records(url)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun stores a run and its records in one transaction. A run without
// an ID is assigned one; the stored run is returned.
func (s *Store) SaveRun(ctx context.Context, result types.RunResult) (types.Run, error) {
	run := result.Run
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, task, started_at, finished_at, fetched, kept) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Fetched, run.Kept,
	); err != nil {
		return run, fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, position, source, title, content, url, published_at,
			authors, abstract, categories, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range result.Records {
		authors, _ := json.Marshal(r.Authors)
		categories, _ := json.Marshal(r.Categories)
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return run, fmt.Errorf("encoding metadata of record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, r.SourceLabel, r.Title, r.Content, r.URL, r.PublishedAt,
			string(authors), r.Abstract, string(categories), string(metadata),
		); err != nil {
			return run, fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return run, nil
}

// ListRuns returns runs newest first, restricted to task when it is not
// empty. A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, task string, limit int) ([]types.Run, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id, task, started_at, finished_at, fetched, kept FROM runs`)
	if task != "" {
		qb.WriteString(` WHERE task = ?`)
		args = append(args, task)
	}
	qb.WriteString(` ORDER BY started_at DESC`)
	if limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (types.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, task, started_at, finished_at, fetched, kept FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// RunRecords returns the records a run kept, in their original order.
func (s *Store) RunRecords(ctx context.Context, runID string) ([]types.Record, error) {
	return s.queryRecords(ctx,
		`SELECT source, title, content, url, published_at, authors, abstract, categories, metadata
		FROM records WHERE run_id = ? ORDER BY position`, runID)
}

// SearchRecords returns stored records whose title or abstract contains
// term, newest run first.
func (s *Store) SearchRecords(ctx context.Context, term string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(term) + "%"
	return s.queryRecords(ctx,
		`SELECT r.source, r.title, r.content, r.url, r.published_at, r.authors, r.abstract, r.categories, r.metadata
		FROM records r JOIN runs ON runs.id = r.run_id
		WHERE lower(r.title) LIKE ? OR lower(r.abstract) LIKE ?
		ORDER BY runs.started_at DESC, r.position
		LIMIT ?`, pattern, pattern, limit)
}

// SeenURLs reports which of urls were kept by an earlier run of task.
func (s *Store) SeenURLs(ctx context.Context, task string, urls []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(urls) == 0 {
		return seen, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, 0, len(urls)+1)
	args = append(args, task)
	for _, u := range urls {
		args = append(args, u)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT r.url FROM records r JOIN runs ON runs.id = r.run_id
		WHERE runs.task = ? AND r.url IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying seen urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning url: %w", err)
		}
		seen[u] = true
	}
	return seen, rows.Err()
}

// PruneRuns deletes all but the newest keep runs of task and returns the
// number deleted.
func (s *Store) PruneRuns(ctx context.Context, task string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE task = ? AND id NOT IN (
			SELECT id FROM runs WHERE task = ? ORDER BY started_at DESC LIMIT ?
		)`, task, task, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs of %s: %w", task, err)
	}
	return res.RowsAffected()
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var (
			r                             types.Record
			url, published, abstract      sql.NullString
			authors, categories, metadata sql.NullString
		)
		if err := rows.Scan(&r.SourceLabel, &r.Title, &r.Content, &url, &published,
			&authors, &abstract, &categories, &metadata); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.URL = url.String
		r.PublishedAt = published.String
		r.Abstract = abstract.String
		if err := decodeJSON(authors, &r.Authors); err != nil {
			return nil, err
		}
		if err := decodeJSON(categories, &r.Categories); err != nil {
			return nil, err
		}
		if err := decodeJSON(metadata, &r.Metadata); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (types.Run, error) {
	var (
		run               types.Run
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.Task, &started, &finished, &run.Fetched, &run.Kept); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scanning run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func decodeJSON(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
