package metrics

import (
	"context"
	"time"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// instrumentedProcessor wraps a processors.Processor so every Extract
// call is timed and recorded to processor_metrics, without requiring
// internal/pipeline's strategies to know about metrics at all.
type instrumentedProcessor struct {
	inner    processors.Processor
	recorder *Recorder
	opts     RecordOpts
}

// Instrument wraps proc so its Extract calls are recorded against
// opts.JobID/BookID/ChapterID (opts.Processor is overwritten with
// proc.Name()). Returns proc unchanged if recorder is nil, so callers
// can instrument unconditionally.
func Instrument(proc processors.Processor, recorder *Recorder, opts RecordOpts) processors.Processor {
	if recorder == nil {
		return proc
	}
	opts.Processor = proc.Name()
	return &instrumentedProcessor{inner: proc, recorder: recorder, opts: opts}
}

func (p *instrumentedProcessor) Name() string { return p.inner.Name() }

func (p *instrumentedProcessor) IsAvailable(ctx context.Context) bool { return p.inner.IsAvailable(ctx) }

func (p *instrumentedProcessor) Load(ctx context.Context) error { return p.inner.Load(ctx) }

func (p *instrumentedProcessor) Extract(ctx context.Context, chapter *model.Chapter) ([]processors.RawDescription, error) {
	start := time.Now()
	out, err := p.inner.Extract(ctx, chapter)
	_ = p.recorder.RecordRun(ctx, p.opts, time.Since(start), len(out), err)
	return out, err
}

// Weight/Threshold/PriorityRank pass through to the wrapped processor
// when it implements processors.Weighted, so ensemble mode's type
// assertion on the instrumented processor still succeeds.
func (p *instrumentedProcessor) Weight() float64 {
	if w, ok := p.inner.(processors.Weighted); ok {
		return w.Weight()
	}
	return 1
}

func (p *instrumentedProcessor) Threshold() float64 {
	if w, ok := p.inner.(processors.Weighted); ok {
		return w.Threshold()
	}
	return 0
}

func (p *instrumentedProcessor) PriorityRank() int {
	if w, ok := p.inner.(processors.Weighted); ok {
		return w.PriorityRank()
	}
	return 0
}

var (
	_ processors.Processor = (*instrumentedProcessor)(nil)
	_ processors.Weighted  = (*instrumentedProcessor)(nil)
)
