package jobs

import (
	"context"
	"log/slog"

	"github.com/fancai/orchestrator/internal/queue"
)

// Scheduler owns the three executor pools and wires a queue.Dispatcher's
// OnDispatch callback to the pool matching each task's queue class.
// Generalizes the teacher's internal/jobs/scheduler.go (which routed
// provider work units to per-provider workers) to routing chapter jobs
// to per-size-class executor pools.
type Scheduler struct {
	pools      map[QueueClass]*Pool
	chapterCounts func(ctx context.Context, bookID string) int
	logger     *slog.Logger
}

// NewScheduler constructs a Scheduler. chapterCounts resolves a book's
// chapter count for RouteQueueClass; it is called once per dispatched
// task, so callers typically back it with a cheap cached count rather
// than a fresh query per dispatch.
func NewScheduler(pools map[QueueClass]*Pool, chapterCounts func(ctx context.Context, bookID string) int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pools: pools, chapterCounts: chapterCounts, logger: logger}
}

// OnDispatch is passed as the queue.Dispatcher's OnDispatch hook: it
// routes the task to the appropriate pool based on the book's chapter
// count.
func (s *Scheduler) OnDispatch(ctx context.Context, task *queue.Task) {
	class := RouteQueueClass(s.chapterCounts(ctx, task.BookID))
	pool, ok := s.pools[class]
	if !ok {
		s.logger.Error("no pool registered for queue class", "class", class, "job_id", task.JobID)
		return
	}
	pool.Submit(ctx, Dispatched{JobID: task.JobID, BookID: task.BookID, UserID: task.UserID})
}

// Start runs every registered pool's executor loop until ctx is
// cancelled, blocking until all of them have drained.
func (s *Scheduler) Start(ctx context.Context) {
	done := make(chan struct{}, len(s.pools))
	for _, pool := range s.pools {
		pool := pool
		go func() {
			pool.Start(ctx)
			done <- struct{}{}
		}()
	}
	for range s.pools {
		<-done
	}
}
