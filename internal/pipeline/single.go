package pipeline

import (
	"context"
	"log/slog"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// singleStrategy uses the highest-priority enabled processor, falling
// back to the next available one on failure (spec.md §4.4 "Single").
type singleStrategy struct {
	logger *slog.Logger
}

func (s *singleStrategy) Mode() ProcessingMode { return ModeSingle }

// Run assumes procs is already ordered by ascending PriorityRank
// (processors.Registry.Available's contract), so procs[0] is the
// highest-priority enabled processor.
func (s *singleStrategy) Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error) {
	if len(procs) == 0 {
		return nil, ErrNoProcessorsAvailable
	}

	var lastErr error
	for _, p := range procs {
		out, err := p.Extract(ctx, chapter)
		if err != nil {
			lastErr = err
			s.logger.Warn("processor unavailable, falling back", "processor", p.Name(), "err", err)
			continue
		}
		return out, nil
	}
	return nil, apperr.ProcessorUnavailableErr(lastErr, "all processors failed for chapter %s", chapter.ID)
}
