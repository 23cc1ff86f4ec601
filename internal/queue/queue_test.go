package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

func TestPriorityQueue_OrdersByPriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(coordstore.NewMemoryStore())

	base := time.Now()
	require.NoError(t, pq.Push(ctx, &Task{JobID: "low-1", Priority: 5, QueuedAt: base}))
	require.NoError(t, pq.Push(ctx, &Task{JobID: "high-1", Priority: 1, QueuedAt: base.Add(time.Millisecond)}))
	require.NoError(t, pq.Push(ctx, &Task{JobID: "high-2", Priority: 1, QueuedAt: base.Add(2 * time.Millisecond)}))

	first := pq.Pop(ctx)
	require.NotNil(t, first)
	assert.Equal(t, "high-1", first.JobID)

	second := pq.Pop(ctx)
	require.NotNil(t, second)
	assert.Equal(t, "high-2", second.JobID)

	third := pq.Pop(ctx)
	require.NotNil(t, third)
	assert.Equal(t, "low-1", third.JobID)

	assert.Nil(t, pq.Pop(ctx))
}

// PositionOf returns 1 when only that job is queued; N when N-1 are
// ahead (spec.md §8).
func TestPriorityQueue_PositionOf(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(coordstore.NewMemoryStore())

	base := time.Now()
	require.NoError(t, pq.Push(ctx, &Task{JobID: "job-1", Priority: 3, QueuedAt: base}))

	pos, err := pq.PositionOf(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	require.NoError(t, pq.Push(ctx, &Task{JobID: "job-2", Priority: 3, QueuedAt: base.Add(time.Millisecond)}))
	require.NoError(t, pq.Push(ctx, &Task{JobID: "job-3", Priority: 3, QueuedAt: base.Add(2 * time.Millisecond)}))

	pos, err = pq.PositionOf(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestPriorityQueue_Remove(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(coordstore.NewMemoryStore())

	require.NoError(t, pq.Push(ctx, &Task{JobID: "job-1", Priority: 1, QueuedAt: time.Now()}))
	assert.True(t, pq.Remove(ctx, "job-1"))
	assert.False(t, pq.Remove(ctx, "job-1"))
	assert.Equal(t, 0, pq.Len())

	_, err := pq.PositionOf(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestPriorityQueue_PushRejectsNil(t *testing.T) {
	pq := NewPriorityQueue(nil)
	err := pq.Push(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilTask)
}

func TestPriorityQueue_Wait_UnblocksOnPush(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(nil)

	done := make(chan *Task, 1)
	go func() {
		done <- pq.Wait(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pq.Push(ctx, &Task{JobID: "job-1", Priority: 1, QueuedAt: time.Now()}))

	select {
	case task := <-done:
		require.NotNil(t, task)
		assert.Equal(t, "job-1", task.JobID)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Push")
	}
}

func TestPriorityQueue_Wait_UnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pq := NewPriorityQueue(nil)

	done := make(chan *Task, 1)
	go func() {
		done <- pq.Wait(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case task := <-done:
		assert.Nil(t, task)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after cancel")
	}
}

func TestPriorityQueue_DurableDepth(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(coordstore.NewMemoryStore())

	require.NoError(t, pq.Push(ctx, &Task{JobID: "a", Priority: 1, QueuedAt: time.Now()}))
	require.NoError(t, pq.Push(ctx, &Task{JobID: "b", Priority: 2, QueuedAt: time.Now()}))

	depth, err := pq.DurableDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)
}

func TestPriorityQueue_DurableDepth_FallsBackToLenWithNoStore(t *testing.T) {
	ctx := context.Background()
	pq := NewPriorityQueue(nil)
	require.NoError(t, pq.Push(ctx, &Task{JobID: "a", Priority: 1, QueuedAt: time.Now()}))

	depth, err := pq.DurableDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}
