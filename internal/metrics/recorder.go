package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/storage/postgres"
)

// Recorder writes Metric rows to processor_metrics.
type Recorder struct {
	c *postgres.Client
}

// NewRecorder constructs a Recorder backed by c.
func NewRecorder(c *postgres.Client) *Recorder {
	return &Recorder{c: c}
}

// RecordOpts attributes a processor invocation to a job/book/chapter.
type RecordOpts struct {
	JobID     string
	BookID    string
	ChapterID string
	Processor string
}

// Record stores a single metric row.
func (r *Recorder) Record(ctx context.Context, m Metric) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := r.c.Pool.Exec(ctx, `
		INSERT INTO processor_metrics (id, job_id, book_id, chapter_id, processor, duration_ms, descriptions_found, success, error_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.JobID, m.BookID, m.ChapterID, m.Processor, m.DurationMS, m.DescriptionsFound, m.Success, m.ErrorType, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert processor metric: %w", err)
	}
	return nil
}

// RecordRun records a completed processor.Extract call: duration,
// descriptions found, and success/failure. On error, ErrorType is
// derived from apperr.KindOf so failures group by taxonomy kind rather
// than by raw error string.
func (r *Recorder) RecordRun(ctx context.Context, opts RecordOpts, duration time.Duration, descriptionsFound int, runErr error) error {
	m := Metric{
		JobID:             opts.JobID,
		BookID:            opts.BookID,
		ChapterID:         opts.ChapterID,
		Processor:         opts.Processor,
		DurationMS:        duration.Milliseconds(),
		DescriptionsFound: descriptionsFound,
		Success:           runErr == nil,
	}
	if runErr != nil {
		m.ErrorType = string(apperr.KindOf(runErr))
	}
	return r.Record(ctx, m)
}
