package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/fancai/orchestrator/internal/admission"
)

// Dispatcher implements spec.md §4.2's dispatch rule: whenever a slot is
// released, or when a wake-tick fires (every T_wake seconds), it pops the
// queue head and attempts acquire_slot. On any gate failure the task is
// reinserted with its original priority unless it has expired
// (queued-at + queue_timeout reached), in which case the caller's
// OnExpire hook is invoked to mark the job failed(queue_timeout).
type Dispatcher struct {
	queue   *PriorityQueue
	gate    *admission.Gate
	logger  *slog.Logger
	wakeTick    time.Duration
	queueTimeout time.Duration
	release chan struct{}

	// OnDispatch is invoked once a task clears admission and its slot is
	// acquired; it should hand the task to a worker pool.
	OnDispatch func(ctx context.Context, task *Task)
	// OnExpire is invoked when a task exceeds queue_timeout while waiting;
	// it should transition the job to failed(queue_timeout).
	OnExpire func(ctx context.Context, task *Task)
}

// NewDispatcher constructs a Dispatcher. wakeTick and queueTimeout default
// to spec.md §6's 5s / 3600s when zero.
func NewDispatcher(q *PriorityQueue, gate *admission.Gate, wakeTick, queueTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if wakeTick <= 0 {
		wakeTick = 5 * time.Second
	}
	if queueTimeout <= 0 {
		queueTimeout = 3600 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:        q,
		gate:         gate,
		logger:       logger,
		wakeTick:     wakeTick,
		queueTimeout: queueTimeout,
		release:      make(chan struct{}, 1),
	}
}

// NotifyRelease signals that a slot was just released, triggering an
// immediate dispatch attempt instead of waiting for the next wake-tick.
func (d *Dispatcher) NotifyRelease() {
	select {
	case d.release <- struct{}{}:
	default:
	}
}

// Run drives the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.wakeTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		case <-d.release:
			d.drain(ctx)
		}
	}
}

// drain attempts to dispatch as many head-of-queue tasks as admission
// allows, stopping at the first defer/reject so that queue order is
// preserved (a later task is never dispatched ahead of an earlier one
// that is merely waiting on capacity).
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		task := d.queue.Pop(ctx)
		if task == nil {
			return
		}

		if d.queueTimeout > 0 && time.Since(task.QueuedAt) >= d.queueTimeout {
			d.logger.Warn("queue: task expired", "job_id", task.JobID, "book_id", task.BookID)
			if d.OnExpire != nil {
				d.OnExpire(ctx, task)
			}
			continue
		}

		decision, reason, err := d.gate.CanStart(ctx, task.BookID, task.UserID)
		if err != nil {
			d.logger.Warn("queue: admission check failed, reinserting", "job_id", task.JobID, "err", err)
			d.requeue(ctx, task)
			return
		}
		if decision != admission.DecisionAdmit {
			d.logger.Debug("queue: dispatch deferred", "job_id", task.JobID, "reason", reason)
			d.requeue(ctx, task)
			return
		}

		ok, err := d.gate.AcquireSlot(ctx, task.BookID, task.UserID, task.JobID)
		if err != nil || !ok {
			d.requeue(ctx, task)
			return
		}

		if d.OnDispatch != nil {
			d.OnDispatch(ctx, task)
		}
	}
}

// requeue reinserts task with its original priority and queued-at, so
// that age-based position reporting and fairness (spec.md §8 "given two
// jobs with identical priority and arrival order, the earlier is
// dispatched first") are unaffected by a failed dispatch attempt.
func (d *Dispatcher) requeue(ctx context.Context, task *Task) {
	if err := d.queue.Push(ctx, task); err != nil {
		d.logger.Error("queue: failed to reinsert task", "job_id", task.JobID, "err", err)
	}
}
