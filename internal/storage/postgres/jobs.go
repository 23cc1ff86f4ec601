package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fancai/orchestrator/internal/model"
)

// JobStore persists model.ParsingJob rows, replacing the teacher's
// DefraDB-GraphQL-backed internal/jobs/manager.go with the same public
// method shape (Create/Get/List/UpdateStatus) against a relational table.
type JobStore struct {
	c *Client
}

// NewJobStore returns a JobStore backed by c.
func NewJobStore(c *Client) *JobStore { return &JobStore{c: c} }

// Create inserts a new queued job.
func (s *JobStore) Create(ctx context.Context, j *model.ParsingJob) error {
	_, err := s.c.Pool.Exec(ctx, `
		INSERT INTO parsing_jobs (id, book_id, user_id, state, priority, attempts, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.ID, j.BookID, j.UserID, j.State, j.Priority, j.Attempts, j.QueuedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (*model.ParsingJob, error) {
	row := s.c.Pool.QueryRow(ctx, `
		SELECT id, book_id, user_id, state, priority, attempts, queued_at, started_at, finished_at, last_error
		FROM parsing_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// ListByState returns all jobs in the given state, used by the stuck-job
// sweep (internal/jobs/reconcile.go) to find running jobs whose
// started_at predates the visibility timeout.
func (s *JobStore) ListByState(ctx context.Context, state model.JobState) ([]*model.ParsingJob, error) {
	rows, err := s.c.Pool.Query(ctx, `
		SELECT id, book_id, user_id, state, priority, attempts, queued_at, started_at, finished_at, last_error
		FROM parsing_jobs WHERE state = $1`, state)
	if err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	defer rows.Close()

	var out []*model.ParsingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetRunning transitions a job to running and stamps started_at.
func (s *JobStore) SetRunning(ctx context.Context, id string) error {
	_, err := s.c.Pool.Exec(ctx, `
		UPDATE parsing_jobs SET state = 'running', started_at = now(), attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set job running: %w", err)
	}
	return nil
}

// SetTerminal transitions a job to a terminal state (succeeded, failed,
// cancelled) and stamps finished_at.
func (s *JobStore) SetTerminal(ctx context.Context, id string, state model.JobState, lastErr string) error {
	_, err := s.c.Pool.Exec(ctx, `
		UPDATE parsing_jobs SET state = $1, finished_at = now(), last_error = $2 WHERE id = $3`,
		state, lastErr, id)
	if err != nil {
		return fmt.Errorf("set job terminal: %w", err)
	}
	return nil
}

// Requeue transitions a job back to queued, for retry or stuck-job
// recovery, without incrementing attempts (the worker does that on the
// next SetRunning).
func (s *JobStore) Requeue(ctx context.Context, id string) error {
	_, err := s.c.Pool.Exec(ctx, `
		UPDATE parsing_jobs SET state = 'queued', started_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ParsingJob, error) {
	var j model.ParsingJob
	var startedAt, finishedAt *time.Time
	if err := row.Scan(&j.ID, &j.BookID, &j.UserID, &j.State, &j.Priority, &j.Attempts,
		&j.QueuedAt, &startedAt, &finishedAt, &j.LastError); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if startedAt != nil {
		j.StartedAt = *startedAt
	}
	if finishedAt != nil {
		j.FinishedAt = *finishedAt
	}
	return &j, nil
}
