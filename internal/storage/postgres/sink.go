package postgres

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriteOp is a single queued write, fire-and-forget from the caller's
// perspective. This mirrors the teacher's internal/defra/sink.go
// WriteOp/Sink pattern, retargeted from DefraDB documents to metrics
// rows (the one write path in this domain that is latency-insensitive
// and safe to batch: per-call processor telemetry).
type WriteOp struct {
	Table    string
	Exec     func(ctx context.Context) error
	EnqueuedAt time.Time
}

// Sink batches writes and flushes them periodically or when full,
// instead of a round-trip per call. Grounded on internal/defra/sink.go's
// queue+batch+flush-goroutine shape.
type Sink struct {
	queue    chan WriteOp
	batch    []WriteOp
	mu       sync.Mutex
	flushCh  chan struct{}
	interval time.Duration
	batchSize int
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// SinkConfig configures a Sink.
type SinkConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	Concurrency   int
	QueueSize     int
	Logger        *slog.Logger
}

// NewSink constructs a Sink with the given configuration, defaulting
// unset fields the same way the teacher's NewSink does.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sink{
		queue:       make(chan WriteOp, cfg.QueueSize),
		flushCh:     make(chan struct{}, 1),
		interval:    cfg.FlushInterval,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start spawns the batching goroutine.
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.runBatcher()
}

// Send enqueues a write, non-blocking unless the queue is full.
func (s *Sink) Send(op WriteOp) {
	op.EnqueuedAt = time.Now()
	select {
	case s.queue <- op:
	case <-s.ctx.Done():
	}
}

// Stop drains the queue, flushes any remaining batch, and waits for
// in-flight flushes to complete.
func (s *Sink) Stop() {
	s.cancel()
	close(s.queue)
	s.wg.Wait()
}

func (s *Sink) runBatcher() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sem := make(chan struct{}, s.concurrency)

	flush := func() {
		s.mu.Lock()
		if len(s.batch) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.batch
		s.batch = nil
		s.mu.Unlock()

		sem <- struct{}{}
		go func(ops []WriteOp) {
			defer func() { <-sem }()
			for _, op := range ops {
				if err := op.Exec(context.Background()); err != nil {
					s.logger.Error("sink write failed", "table", op.Table, "error", err)
				}
			}
		}(batch)
	}

	for {
		select {
		case op, ok := <-s.queue:
			if !ok {
				flush()
				for i := 0; i < s.concurrency; i++ {
					sem <- struct{}{}
				}
				return
			}
			s.mu.Lock()
			s.batch = append(s.batch, op)
			full := len(s.batch) >= s.batchSize
			s.mu.Unlock()
			if full {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
