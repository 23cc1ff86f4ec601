package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/pipeline/ensemble"
	"github.com/fancai/orchestrator/internal/processors"
)

// ensembleStrategy runs every enabled processor in parallel (bounded by
// maxConcurrent) and resolves disagreement via weighted consensus
// voting (spec.md §4.4 "Ensemble").
type ensembleStrategy struct {
	maxConcurrent int
	voter         *ensemble.Voter
	logger        *slog.Logger
}

func (s *ensembleStrategy) Mode() ProcessingMode { return ModeEnsemble }

func (s *ensembleStrategy) Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error) {
	if len(procs) == 0 {
		return nil, ErrNoProcessorsAvailable
	}

	limit := s.maxConcurrent
	if limit <= 0 {
		limit = len(procs)
	}
	sem := make(chan struct{}, limit)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sources []ensemble.Source
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
				s.logger.Warn("processor unavailable during ensemble run", "processor", p.Name(), "err", err)
				return
			}

			weight, priorityRank := 1.0, 0
			if w, ok := p.(processors.Weighted); ok {
				weight, priorityRank = w.Weight(), w.PriorityRank()
			}

			mu.Lock()
			sources = append(sources, ensemble.Source{
				ProcessorName: p.Name(),
				Weight:        weight,
				PriorityRank:  priorityRank,
				Descriptions:  out,
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	return s.voter.Vote(sources), nil
}
