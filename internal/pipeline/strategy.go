// Package pipeline implements the Description Pipeline of spec.md §4.4:
// a pluggable Strategy over the processor ensemble, followed by the
// common type-mapping/scoring/filtering/dedup/persistence/image-dispatch
// steps every strategy shares. Generalizes the teacher's
// internal/pipeline/{stage,registry}.go DAG-ordered stage registry into
// a flat, dependency-free Strategy selection keyed by ProcessingMode,
// keeping the teacher's Registry caching pattern (a Strategy is built
// once per mode and reused) while dropping the topological-sort/cycle
// detection machinery: strategies don't depend on one another the way
// the teacher's OCR/label/blend stages did.
package pipeline

import (
	"context"
	"regexp"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// sentenceSplitter gives the adaptive complexity estimator rough
// sentence boundaries.
var sentenceSplitter = regexp.MustCompile(`[.!?]+\s+`)

// ErrNoProcessorsAvailable is returned when a strategy has no enabled,
// available processor to run. Classified as apperr.KindProcessorUnavailable
// so the pool's retry path (spec.md §7 "Retry job once if fallback
// yields < 1 description") treats it as retriable instead of fatal.
var ErrNoProcessorsAvailable = apperr.ProcessorUnavailable("no processors available")

// ProcessingMode selects the orchestration pattern a Strategy applies
// over the processor ensemble (spec.md §4.4).
type ProcessingMode string

const (
	ModeSingle     ProcessingMode = "single"
	ModeParallel   ProcessingMode = "parallel"
	ModeSequential ProcessingMode = "sequential"
	ModeEnsemble   ProcessingMode = "ensemble"
	ModeAdaptive   ProcessingMode = "adaptive"
)

// Strategy runs the configured processor set over a chapter and returns
// the merged raw description spans. Dedup/filter/scoring happen
// afterward in the shared Pipeline steps, not inside a Strategy.
type Strategy interface {
	Mode() ProcessingMode
	Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error)
}
