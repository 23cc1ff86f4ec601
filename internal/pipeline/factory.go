package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fancai/orchestrator/internal/pipeline/ensemble"
)

// ErrUnknownMode is returned when a ProcessingMode has no registered
// Strategy constructor.
var ErrUnknownMode = errors.New("unknown processing mode")

// StrategyFactory builds and caches one Strategy instance per
// ProcessingMode, generalizing the teacher's pipeline Registry's
// register-once/reuse caching (spec.md §4.4 "resolves it via a strategy
// factory that caches instances").
type StrategyFactory struct {
	mu            sync.Mutex
	maxConcurrent int
	voter         *ensemble.Voter
	logger        *slog.Logger
	cache         map[ProcessingMode]Strategy
}

// NewStrategyFactory constructs a factory. maxConcurrent bounds
// parallel/ensemble processor fan-out (spec.md's
// `max_parallel_processors`, default 3); consensusThreshold configures
// the ensemble voter (default 0.5 when non-positive).
func NewStrategyFactory(maxConcurrent int, consensusThreshold float64, logger *slog.Logger) *StrategyFactory {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &StrategyFactory{
		maxConcurrent: maxConcurrent,
		voter:         ensemble.New(consensusThreshold),
		logger:        logger,
		cache:         make(map[ProcessingMode]Strategy),
	}
}

// Get returns the cached Strategy for mode, constructing it on first
// use.
func (f *StrategyFactory) Get(mode ProcessingMode) (Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.cache[mode]; ok {
		return s, nil
	}

	var s Strategy
	switch mode {
	case ModeSingle:
		s = &singleStrategy{logger: f.logger}
	case ModeParallel:
		s = &parallelStrategy{maxConcurrent: f.maxConcurrent, logger: f.logger}
	case ModeSequential:
		s = &sequentialStrategy{logger: f.logger}
	case ModeEnsemble:
		s = &ensembleStrategy{maxConcurrent: f.maxConcurrent, voter: f.voter, logger: f.logger}
	case ModeAdaptive:
		// adaptiveStrategy.Run calls back into f.Get at delegation time
		// (well after this constructing Get call has returned and
		// released f.mu), so no reentrancy/deadlock concern here.
		s = &adaptiveStrategy{resolve: f.Get}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	f.cache[mode] = s
	return s, nil
}
