package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/fancai/orchestrator/internal/model"
)

// Reconciler periodically sweeps jobs stuck in the running state whose
// started_at predates now - visibility_timeout without a completing
// worker, and requeues them. Resolves Open Question 3 of spec.md §9
// ("exact crash-recovery test coverage is thin... implementations should
// add a periodic stuck jobs sweep (every 5 min)"); no teacher analogue
// exists since DefraDB-backed jobs had no durable-queue visibility
// timeout concept.
type Reconciler struct {
	jobs              JobStore
	listRunning       func(ctx context.Context) ([]*model.ParsingJob, error)
	visibilityTimeout time.Duration
	sweepInterval     time.Duration
	logger            *slog.Logger
}

// ListRunningFunc returns all jobs currently in the running state.
type ListRunningFunc func(ctx context.Context) ([]*model.ParsingJob, error)

// NewReconciler constructs a Reconciler. sweepInterval and
// visibilityTimeout default to spec.md §6's 300s / 600s when zero.
func NewReconciler(jobs JobStore, listRunning ListRunningFunc, visibilityTimeout, sweepInterval time.Duration, logger *slog.Logger) *Reconciler {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 600 * time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		jobs:              jobs,
		listRunning:       listRunning,
		visibilityTimeout: visibilityTimeout,
		sweepInterval:     sweepInterval,
		logger:            logger,
	}
}

// Run ticks every sweepInterval until ctx is cancelled, invoking Sweep
// each time.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("stuck job sweep failed", "err", err)
			} else if n > 0 {
				r.logger.Info("stuck job sweep requeued jobs", "count", n)
			}
		}
	}
}

// Sweep runs one pass, returning the number of jobs requeued.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	running, err := r.listRunning(ctx)
	if err != nil {
		return 0, err
	}

	threshold := time.Now().Add(-r.visibilityTimeout)
	requeued := 0
	for _, job := range running {
		if job.StartedAt.IsZero() || job.StartedAt.After(threshold) {
			continue
		}
		r.logger.Warn("requeuing stuck job", "job_id", job.ID, "started_at", job.StartedAt)
		if err := r.jobs.Requeue(ctx, job.ID); err != nil {
			r.logger.Error("failed to requeue stuck job", "job_id", job.ID, "err", err)
			continue
		}
		requeued++
	}
	return requeued, nil
}
