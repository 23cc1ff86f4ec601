package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// parallelStrategy runs every enabled processor concurrently, bounded
// by maxConcurrent (spec.md §4.4 "Parallel", `max_parallel_processors`).
type parallelStrategy struct {
	maxConcurrent int
	logger        *slog.Logger
}

func (s *parallelStrategy) Mode() ProcessingMode { return ModeParallel }

func (s *parallelStrategy) Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error) {
	if len(procs) == 0 {
		return nil, ErrNoProcessorsAvailable
	}

	limit := s.maxConcurrent
	if limit <= 0 {
		limit = len(procs)
	}
	sem := make(chan struct{}, limit)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merged []processors.RawDescription
	)
	for _, p := range procs {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := p.Extract(ctx, chapter)
			if err != nil {
				s.logger.Warn("processor unavailable during parallel run", "processor", p.Name(), "err", err)
				return
			}
			mu.Lock()
			merged = append(merged, out...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return merged, nil
}
