// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists jobs in SQLite. Each job is one row holding the
// full job document as JSON, written atomically on every state transition.
// The job's runner goroutine is the single writer for its row; status
// reads may happen concurrently from any goroutine.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/renderforge/pkg/types"
)

const dbFile = "jobs.db"

// ErrNotFound reports that no job exists with the requested id.
var ErrNotFound = errors.New("job not found")

// Store manages the job SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the job database at dir/jobs.db and creates
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
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
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			failure_reason TEXT,
			doc TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put upserts the full job document. One row write per state transition;
// a concurrent reader sees either the previous or the new document, never
// a mix.
func (s *Store) Put(ctx context.Context, job *types.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, state, failure_reason, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, failure_reason=excluded.failure_reason,
			doc=excluded.doc, updated_at=excluded.updated_at`,
		job.ID, string(job.State), string(job.FailureReason), string(doc),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the stored job document, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.Job, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM jobs WHERE id = ?`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", id, err)
	}
	return decodeJob(id, doc)
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*types.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		job, err := decodeJob(id, doc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// RecoverInFlight marks every non-terminal job as failed with
// internal_timeout. Called once at startup: a job found mid-flight after
// a restart lost its runner goroutine and cannot resume half-done
// provider calls. Returns the number of jobs recovered.
func (s *Store) RecoverInFlight(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc FROM jobs WHERE state NOT IN (?, ?)`,
		string(types.StateCompleted), string(types.StateFailed))
	if err != nil {
		return 0, fmt.Errorf("querying in-flight jobs: %w", err)
	}

	type pending struct {
		id  string
		doc string
	}
	var found []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.doc); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning in-flight job: %w", err)
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterating in-flight jobs: %w", err)
	}
	rows.Close()

	for _, p := range found {
		job, err := decodeJob(p.id, p.doc)
		if err != nil {
			return 0, err
		}
		job.State = types.StateFailed
		job.FailureReason = types.ReasonInternalTimeout
		job.FailureDetail = "process restarted while job was in flight"
		job.UpdatedAt = now
		if err := s.Put(ctx, job); err != nil {
			return 0, err
		}
	}
	return len(found), nil
}

func decodeJob(id, doc string) (*types.Job, error) {
	var job types.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &job, nil
}
