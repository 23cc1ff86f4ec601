package pipeline

import (
	"context"

	"github.com/fancai/orchestrator/internal/metrics"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// ProcessorSource supplies the live, currently-available processor set
// a chapter run draws from; internal/processors.Registry implements it.
type ProcessorSource interface {
	Available(ctx context.Context) []processors.Processor
}

// ChapterAdapter satisfies internal/jobs.ChapterProcessor by binding a
// Pipeline to a fixed ProcessingMode and a live processor source, and
// wrapping each processor with per-(job,chapter,processor) metrics
// recording (spec.md §6's processor_metrics telemetry) before the
// strategy runs it. It is the seam jobs.ParsingJob.Run calls once per
// chapter.
type ChapterAdapter struct {
	pipeline *Pipeline
	source   ProcessorSource
	mode     ProcessingMode
	recorder *metrics.Recorder
}

// NewChapterAdapter constructs a ChapterAdapter. recorder may be nil,
// in which case processors run uninstrumented.
func NewChapterAdapter(p *Pipeline, source ProcessorSource, mode ProcessingMode, recorder *metrics.Recorder) *ChapterAdapter {
	return &ChapterAdapter{pipeline: p, source: source, mode: mode, recorder: recorder}
}

// ProcessChapter implements internal/jobs.ChapterProcessor.
func (a *ChapterAdapter) ProcessChapter(ctx context.Context, book *model.Book, chapter *model.Chapter) (int, error) {
	available := a.source.Available(ctx)
	procs := make([]processors.Processor, len(available))
	// JobID is not threaded through jobs.ChapterProcessor's signature;
	// per-run metrics are keyed by book/chapter/processor instead.
	opts := metrics.RecordOpts{BookID: book.ID, ChapterID: chapter.ID}
	for i, p := range available {
		procs[i] = metrics.Instrument(p, a.recorder, opts)
	}
	return a.pipeline.Run(ctx, a.mode, chapter, procs)
}
