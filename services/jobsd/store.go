// Package jobsd is the job-discovery sidecar: plain CRUD over descriptive
// job postings. It is fully decoupled from custody identifiers; a posting is
// discovery metadata only and never participates in any custody guard.
package jobsd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrJobNotFound is returned when no posting exists under the identifier.
var ErrJobNotFound = errors.New("jobsd: job not found")

// Job is one posted listing.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Budget      string    `json:"budget"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists job postings in SQLite.
type Store struct {
	db    *sql.DB
	nowFn func() time.Time
}

// OpenStore opens (and migrates) the store at path. Use ":memory:" in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("jobsd: open sqlite: %w", err)
	}
	store := &Store{db: db, nowFn: time.Now}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    budget TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("jobsd: migrate: %w", err)
	}
	return nil
}

// CreateJob inserts a new posting and returns it with its generated id.
func (s *Store) CreateJob(ctx context.Context, job Job) (Job, error) {
	if strings.TrimSpace(job.Title) == "" {
		return Job{}, fmt.Errorf("jobsd: title required")
	}
	job.ID = uuid.NewString()
	now := s.nowFn().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, title, budget, location, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Title, job.Budget, job.Location, job.Description, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("jobsd: insert job: %w", err)
	}
	return job, nil
}

// GetJob loads one posting by identifier.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, budget, location, description, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	var job Job
	err := row.Scan(&job.ID, &job.Title, &job.Budget, &job.Location, &job.Description, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("jobsd: load job: %w", err)
	}
	return job, nil
}

// ListJobs returns all postings, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, budget, location, description, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("jobsd: list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Budget, &job.Location, &job.Description, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("jobsd: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob overwrites the descriptive fields of an existing posting.
func (s *Store) UpdateJob(ctx context.Context, job Job) (Job, error) {
	if strings.TrimSpace(job.Title) == "" {
		return Job{}, fmt.Errorf("jobsd: title required")
	}
	job.UpdatedAt = s.nowFn().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET title = ?, budget = ?, location = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		job.Title, job.Budget, job.Location, job.Description, job.UpdatedAt, job.ID)
	if err != nil {
		return Job{}, fmt.Errorf("jobsd: update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Job{}, fmt.Errorf("jobsd: update job: %w", err)
	}
	if affected == 0 {
		return Job{}, ErrJobNotFound
	}
	return s.GetJob(ctx, job.ID)
}

// DeleteJob removes a posting.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("jobsd: delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobsd: delete job: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}
