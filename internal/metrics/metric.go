// Package metrics records per-(job, chapter, processor) extraction
// telemetry (SPEC_FULL.md "SUPPLEMENTED FEATURES": the original's
// Celery task metrics), adapted from the teacher's DefraDB-backed
// Metric/Recorder/Query trio onto the processor_metrics Postgres table
// (schema.sql).
package metrics

import "time"

// Metric is one recorded processor invocation.
type Metric struct {
	ID                string
	JobID             string
	BookID            string
	ChapterID         string
	Processor         string
	DurationMS        int64
	DescriptionsFound int
	Success           bool
	ErrorType         string
	CreatedAt         time.Time
}
