package pipeline

import (
	"context"
	"log/slog"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// sequentialStrategy runs the same processor set as parallelStrategy
// but one at a time, for use when memory is tight (spec.md §4.4
// "Sequential... Identical merge/dedupe").
type sequentialStrategy struct {
	logger *slog.Logger
}

func (s *sequentialStrategy) Mode() ProcessingMode { return ModeSequential }

func (s *sequentialStrategy) Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error) {
	if len(procs) == 0 {
		return nil, ErrNoProcessorsAvailable
	}

	var merged []processors.RawDescription
	for _, p := range procs {
		out, err := p.Extract(ctx, chapter)
		if err != nil {
			s.logger.Warn("processor unavailable during sequential run", "processor", p.Name(), "err", err)
			continue
		}
		merged = append(merged, out...)
	}
	return merged, nil
}
