package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fancai/orchestrator/internal/storage/postgres"
)

// Filter narrows a metrics query. Zero-valued fields are not applied.
type Filter struct {
	JobID     string
	BookID    string
	ChapterID string
	Processor string
	After     time.Time
	Before    time.Time
	Success   *bool // nil = any, true = success only, false = errors only
}

// Query runs read-only queries against processor_metrics.
type Query struct {
	c *postgres.Client
}

// NewQuery constructs a Query backed by c.
func NewQuery(c *postgres.Client) *Query {
	return &Query{c: c}
}

// whereClause builds a parameterized WHERE clause for f, returning the
// clause (possibly empty) and the ordered argument list. Unlike the
// teacher's GraphQL filter builder (string-interpolated into the query
// text), arguments here are always passed as placeholders: this is
// literal SQL, where interpolating filter values would be a textbook
// injection bug rather than a stylistic choice to imitate.
func whereClause(f Filter) (string, []any) {
	var parts []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		parts = append(parts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.JobID != "" {
		add("job_id", f.JobID)
	}
	if f.BookID != "" {
		add("book_id", f.BookID)
	}
	if f.ChapterID != "" {
		add("chapter_id", f.ChapterID)
	}
	if f.Processor != "" {
		add("processor", f.Processor)
	}
	if !f.After.IsZero() {
		args = append(args, f.After)
		parts = append(parts, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if !f.Before.IsZero() {
		args = append(args, f.Before)
		parts = append(parts, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.Success != nil {
		add("success", *f.Success)
	}

	if len(parts) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// List returns metrics matching f, most recent first, capped at limit
// (0 means unbounded).
func (q *Query) List(ctx context.Context, f Filter, limit int) ([]Metric, error) {
	where, args := whereClause(f)
	query := fmt.Sprintf(`
		SELECT id, job_id, book_id, chapter_id, processor, duration_ms, descriptions_found, success, error_type, created_at
		FROM processor_metrics
		%s
		ORDER BY created_at DESC`, where)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.c.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processor metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.JobID, &m.BookID, &m.ChapterID, &m.Processor,
			&m.DurationMS, &m.DescriptionsFound, &m.Success, &m.ErrorType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan processor metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ProcessorSummary aggregates run counts, success rate, and average
// duration for one processor within a filter window.
type ProcessorSummary struct {
	Processor         string
	TotalRuns         int
	SuccessfulRuns    int
	AvgDurationMS     float64
	DescriptionsFound int
}

// Aggregate groups matching metrics by processor, for the operational
// "which processor is slow/unreliable" question. No CLI subcommand
// calls it.
func (q *Query) Aggregate(ctx context.Context, f Filter) ([]ProcessorSummary, error) {
	where, args := whereClause(f)
	query := fmt.Sprintf(`
		SELECT processor,
		       count(*),
		       count(*) FILTER (WHERE success),
		       avg(duration_ms),
		       coalesce(sum(descriptions_found), 0)
		FROM processor_metrics
		%s
		GROUP BY processor
		ORDER BY processor`, where)

	rows, err := q.c.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate processor metrics: %w", err)
	}
	defer rows.Close()

	var out []ProcessorSummary
	for rows.Next() {
		var s ProcessorSummary
		var avg *float64
		if err := rows.Scan(&s.Processor, &s.TotalRuns, &s.SuccessfulRuns, &avg, &s.DescriptionsFound); err != nil {
			return nil, fmt.Errorf("scan processor metric summary: %w", err)
		}
		if avg != nil {
			s.AvgDurationMS = *avg
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
