// Package queue implements the Parsing Queue of spec.md §4.2: a
// priority-ordered set keyed on (priority, queued-at), with an in-process
// heap fronting a durable mirror in the coordination store's sorted set
// so that queue contents and position_of survive a process restart.
//
// The heap shape (container/heap, FIFO-within-priority via a sequence
// counter) is ported directly from the teacher's internal/jobs/priority_queue.go.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

// ErrNilTask is returned when attempting to push a nil task.
var ErrNilTask = errors.New("cannot push nil task")

// Task is the full payload stored in the queue, so that dispatch does not
// need to re-derive priority or identity (spec.md §4.2 "Shape").
type Task struct {
	JobID    string
	BookID   string
	UserID   string
	Priority int // 1=high .. 10=low
	QueuedAt time.Time
}

const durableKey = "parsing:queue"

// score encodes (priority, queued-at) into a single float64 so that a
// Redis sorted set orders by priority first and arrival second: priority
// occupies the integer part, queued-at (as Unix nanoseconds, scaled down)
// breaks ties within a priority band.
func score(priority int, queuedAt time.Time) float64 {
	return float64(priority)*1e13 + float64(queuedAt.UnixNano())/1e8
}

// PriorityQueue is a thread-safe priority queue for parsing tasks. Tasks
// with a lower Priority value are dequeued first; ties are broken FIFO by
// arrival order. Every Push/Pop/Remove also mutates a durable mirror in
// the coordination store so that queue depth and position survive a
// process restart.
type PriorityQueue struct {
	mu     sync.Mutex
	items  taskHeap
	seq    uint64
	notify chan struct{}

	store coordstore.Store
}

// NewPriorityQueue constructs an empty PriorityQueue backed by store for
// durability. store may be nil in tests that only exercise in-process
// ordering.
func NewPriorityQueue(store coordstore.Store) *PriorityQueue {
	pq := &PriorityQueue{
		items:  make(taskHeap, 0),
		notify: make(chan struct{}, 1),
		store:  store,
	}
	heap.Init(&pq.items)
	return pq
}

// Push adds a task to the queue and its durable mirror.
func (pq *PriorityQueue) Push(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrNilTask
	}

	pq.mu.Lock()
	pq.seq++
	item := &taskItem{task: task, seq: pq.seq}
	heap.Push(&pq.items, item)
	pq.mu.Unlock()

	if pq.store != nil {
		if err := pq.store.ZAdd(ctx, durableKey, score(task.Priority, task.QueuedAt), task.JobID); err != nil {
			return fmt.Errorf("queue: durable push: %w", err)
		}
	}

	select {
	case pq.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the highest-priority task, or nil if the queue
// is empty.
func (pq *PriorityQueue) Pop(ctx context.Context) *Task {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&pq.items).(*taskItem)
	if pq.store != nil {
		_ = pq.store.ZRem(ctx, durableKey, item.task.JobID)
	}
	return item.task
}

// Wait blocks until an item is available or ctx is cancelled, then pops.
func (pq *PriorityQueue) Wait(ctx context.Context) *Task {
	for {
		if t := pq.Pop(ctx); t != nil {
			return t
		}
		select {
		case <-ctx.Done():
			return nil
		case <-pq.notify:
		}
	}
}

// Remove deletes a task by job ID from both the heap and the durable
// mirror, used when a queued job is cancelled before dispatch.
func (pq *PriorityQueue) Remove(ctx context.Context, jobID string) bool {
	pq.mu.Lock()
	removed := false
	for i, item := range pq.items {
		if item.task.JobID == jobID {
			heap.Remove(&pq.items, i)
			removed = true
			break
		}
	}
	pq.mu.Unlock()

	if pq.store != nil {
		_ = pq.store.ZRem(ctx, durableKey, jobID)
	}
	return removed
}

// DurableDepth returns the queue depth from the durable mirror, so a
// process that does not hold the live in-memory heap (e.g. the `stats`
// CLI subcommand inspecting a separately running worker) can still
// report queue length. Falls back to Len when store is nil.
func (pq *PriorityQueue) DurableDepth(ctx context.Context) (int64, error) {
	if pq.store == nil {
		return int64(pq.Len()), nil
	}
	return pq.store.ZCard(ctx, durableKey)
}

// Len returns the number of queued tasks.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.items.Len()
}

// PositionOf returns the 1-based rank of jobID in the queue: 1 when it is
// the only job queued, N when N-1 jobs are ahead of it (spec.md §8). It
// consults the durable mirror so that position survives process restart
// and is consistent across multiple dispatcher processes; it may be
// approximate under concurrent modification (spec.md §4.2).
func (pq *PriorityQueue) PositionOf(ctx context.Context, jobID string) (int, error) {
	if pq.store == nil {
		return pq.positionOfLocal(jobID)
	}
	rank, err := pq.store.ZRank(ctx, durableKey, jobID)
	if err != nil {
		return 0, fmt.Errorf("queue: position_of: %w", err)
	}
	if rank < 0 {
		return 0, ErrNotQueued
	}
	return int(rank) + 1, nil
}

// ErrNotQueued is returned by PositionOf when the job is not present in
// the queue (already dispatched, or never enqueued).
var ErrNotQueued = errors.New("job is not in the queue")

func (pq *PriorityQueue) positionOfLocal(jobID string) (int, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	ordered := make(taskHeap, len(pq.items))
	copy(ordered, pq.items)
	heap.Init(&ordered)
	pos := 0
	for ordered.Len() > 0 {
		item := heap.Pop(&ordered).(*taskItem)
		pos++
		if item.task.JobID == jobID {
			return pos, nil
		}
	}
	return 0, ErrNotQueued
}

type taskItem struct {
	task *Task
	seq  uint64
}

// taskHeap implements heap.Interface. Lower Priority value comes first
// (min-heap on priority integer, matching spec.md's "1=high..10=low");
// ties are broken FIFO by sequence number.
type taskHeap []*taskItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*taskItem))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}
