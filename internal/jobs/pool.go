package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/model"
)

// JobStore is the narrow slice of internal/storage/postgres.JobStore a
// pool needs to drive a job through its lifecycle.
type JobStore interface {
	Get(ctx context.Context, id string) (*model.ParsingJob, error)
	SetRunning(ctx context.Context, id string) error
	SetTerminal(ctx context.Context, id string, state model.JobState, lastErr string) error
	Requeue(ctx context.Context, id string) error
}

// SlotReleaser releases the admission slot a dispatched task holds. The
// dispatcher is woken separately, through PoolConfig.OnSlotReleased
// (spec.md §4.2 "release-triggered dispatch").
type SlotReleaser interface {
	ReleaseSlot(ctx context.Context, bookID, userID, jobID string) error
}

// ResourceGate is consulted by the pre-task hook immediately before a
// worker goroutine begins a job, independent of the admission check that
// ran at dispatch time: the gap between dispatch and execution can be
// seconds under load, long enough for the pre-task hook's own
// memory%/CPU% snapshot to matter (spec.md §4.3 "Pre-task hook: if
// memory% > 85 or CPU% > 90, defer to queue instead of starting").
type ResourceGate func(ctx context.Context) (memoryPercent, cpuPercent float64, err error)

// Dispatched is the unit submitted to a Pool: the admitted task plus
// everything needed to build and run a ParsingJob.
type Dispatched struct {
	JobID  string
	BookID string
	UserID string
}

// PoolConfig configures one of the three executor pools named by
// spec.md's --queues heavy,normal,light.
type PoolConfig struct {
	Class       QueueClass
	Concurrency int

	SoftTimeLimit time.Duration // default 1500s (25 min)
	HardTimeLimit time.Duration // default 1800s (30 min)

	MaxTasksPerChild   int // goroutine "child" recycles after this many jobs
	MaxMemoryPerChildMB int

	MaxMemoryPercent float64
	MaxCPUPercent    float64

	// SkipServicePages threads internal/config.Config.SkipServicePages
	// into every ParsingJob this pool runs (spec.md §6).
	SkipServicePages bool

	// DispatchRatePerSecond bounds how fast this pool pulls new tasks off
	// its input channel, independent of the admission gate's cross-process
	// concurrency limits: it smooths local goroutine churn (job setup,
	// child recycling) rather than gating shared resource usage, which is
	// the coordination store's job (internal/admission). Zero means
	// unlimited.
	DispatchRatePerSecond float64

	Retry RetryPolicy

	Jobs      JobStore
	Books     BookStore
	Chapters  ChapterStore
	Processor ChapterProcessor
	Slots     SlotReleaser
	Resources ResourceGate
	Cancelled CancelChecker

	Logger *slog.Logger

	// OnSlotReleased is invoked after a job reaches a terminal state and
	// its slot is released, so the dispatcher can be woken immediately.
	OnSlotReleased func()
}

// Pool runs Concurrency goroutines ("children") pulling Dispatched tasks
// from an input channel and running them to completion. The hard time
// limit bounds each run's ctx; the soft deadline is stamped on the
// ParsingJob, which checks it between chapters. A child is recycled
// after MaxTasksPerChild jobs; MaxMemoryPerChildMB is defaulted but not
// consulted, so there is no memory-based recycling. Generalizes the
// teacher's internal/jobs/worker.go goroutine-pool shape from provider
// work units to chapter jobs.
type Pool struct {
	cfg     PoolConfig
	input   chan Dispatched
	wg      sync.WaitGroup
	limiter *rate.Limiter
}

// NewPool constructs a Pool, filling in spec.md §6 defaults for any zero
// duration/count fields.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.SoftTimeLimit <= 0 {
		cfg.SoftTimeLimit = 1500 * time.Second
	}
	if cfg.HardTimeLimit <= 0 {
		cfg.HardTimeLimit = 1800 * time.Second
	}
	if cfg.MaxTasksPerChild <= 0 {
		cfg.MaxTasksPerChild = 10
	}
	if cfg.MaxMemoryPerChildMB <= 0 {
		cfg.MaxMemoryPerChildMB = 5120
	}
	if cfg.MaxMemoryPercent <= 0 {
		cfg.MaxMemoryPercent = 85
	}
	if cfg.MaxCPUPercent <= 0 {
		cfg.MaxCPUPercent = 90
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.DispatchRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRatePerSecond), 1)
	}
	return &Pool{cfg: cfg, input: make(chan Dispatched, 1000), limiter: limiter}
}

// Submit hands a dispatched task to the pool. Blocks if the input
// channel is full.
func (p *Pool) Submit(ctx context.Context, d Dispatched) {
	select {
	case p.input <- d:
	case <-ctx.Done():
	}
}

// Start spawns Concurrency child goroutines and blocks until ctx is
// cancelled, at which point it waits for in-flight jobs to observe
// cancellation before returning.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.runChild(ctx, i)
	}
	p.wg.Wait()
}

// runChild is one recycling "child": it processes jobs from the shared
// input channel until it has handled MaxTasksPerChild of them, then
// exits and is replaced by a fresh goroutine, simulating the teacher's
// process-level max-tasks-per-child recycling (spec.md §4.3) without an
// actual OS process per worker.
func (p *Pool) runChild(ctx context.Context, childIndex int) {
	defer p.wg.Done()

	var tasksHandled int
	logger := p.cfg.Logger.With("class", p.cfg.Class, "child", childIndex)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.input:
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
			}
			p.runOne(ctx, d, logger)
			tasksHandled++
			if tasksHandled >= p.cfg.MaxTasksPerChild {
				logger.Info("recycling worker child", "tasks_handled", tasksHandled)
				p.wg.Add(1)
				go p.runChild(ctx, childIndex)
				return
			}
		}
	}
}

// runOne drives one job through pre-task hook, execution bounded by the
// hard deadline, retry-on-exhaustion, and terminal-state persistence.
func (p *Pool) runOne(ctx context.Context, d Dispatched, logger *slog.Logger) {
	if p.cfg.Resources != nil {
		memPct, cpuPct, err := p.cfg.Resources(ctx)
		if err == nil && (memPct > p.cfg.MaxMemoryPercent || cpuPct > p.cfg.MaxCPUPercent) {
			logger.Warn("pre-task hook deferring job to queue", "mem_pct", memPct, "cpu_pct", cpuPct)
			_ = p.cfg.Jobs.Requeue(ctx, d.JobID)
			p.release(ctx, d)
			return
		}
	}

	record, err := p.cfg.Jobs.Get(ctx, d.JobID)
	if err != nil {
		logger.Error("failed to load job record", "job_id", d.JobID, "err", err)
		return
	}

	if err := p.cfg.Jobs.SetRunning(ctx, d.JobID); err != nil {
		logger.Error("failed to mark job running", "job_id", d.JobID, "err", err)
		return
	}
	// SetRunning incremented the stored attempt count; mirror it on the
	// record loaded above so the retry decisions below count this run.
	record.Attempts++
	_ = p.cfg.Books.SetProcessing(ctx, d.BookID, true)

	now := time.Now()
	softDeadline := now.Add(p.cfg.SoftTimeLimit)
	hardDeadline := now.Add(p.cfg.HardTimeLimit)

	runCtx, cancel := context.WithDeadline(ctx, hardDeadline)
	job := &ParsingJob{
		Record:           record,
		Books:            p.cfg.Books,
		Chapters:         p.cfg.Chapters,
		Processor:        p.cfg.Processor,
		IsCancelled:      p.cfg.Cancelled,
		Logger:           logger,
		SoftDeadline:     softDeadline,
		HardDeadline:     hardDeadline,
		SkipServicePages: p.cfg.SkipServicePages,
	}
	err = job.Run(runCtx)
	cancel()

	_ = p.cfg.Books.SetProcessing(ctx, d.BookID, false)

	switch {
	case err == nil:
		_ = p.cfg.Jobs.SetTerminal(ctx, d.JobID, model.JobSucceeded, "")
		p.release(ctx, d)

	case errors.Is(err, ErrCancelled):
		_ = p.cfg.Jobs.SetTerminal(ctx, d.JobID, model.JobCancelled, "cancelled by user")
		p.release(ctx, d)

	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("job exceeded hard time limit, requeuing", "job_id", d.JobID)
		p.retryOrFail(ctx, record, "hard_timeout")
		p.release(ctx, d)

	default:
		if apperr.Retriable(err) && !p.cfg.Retry.Exhausted(record.Attempts) {
			logger.Warn("job failed with retriable error, scheduling retry",
				"job_id", d.JobID, "attempt", record.Attempts, "err", err)
			p.cfg.Retry.Sleep(ctx, record.Attempts)
			_ = p.cfg.Jobs.Requeue(ctx, d.JobID)
		} else {
			_ = p.cfg.Jobs.SetTerminal(ctx, d.JobID, model.JobFailed, err.Error())
		}
		p.release(ctx, d)
	}
}

// retryOrFail requeues a hard-timed-out job if attempts remain, else
// marks it failed(hard_timeout).
func (p *Pool) retryOrFail(ctx context.Context, record *model.ParsingJob, reason string) {
	if !p.cfg.Retry.Exhausted(record.Attempts) {
		_ = p.cfg.Jobs.Requeue(ctx, record.ID)
		return
	}
	_ = p.cfg.Jobs.SetTerminal(ctx, record.ID, model.JobFailed, reason)
}

func (p *Pool) release(ctx context.Context, d Dispatched) {
	if p.cfg.Slots != nil {
		_ = p.cfg.Slots.ReleaseSlot(ctx, d.BookID, d.UserID, d.JobID)
	}
	if p.cfg.OnSlotReleased != nil {
		p.cfg.OnSlotReleased()
	}
}

// Depth reports the number of tasks currently buffered in the pool's
// input channel.
func (p *Pool) Depth() int {
	return len(p.input)
}
