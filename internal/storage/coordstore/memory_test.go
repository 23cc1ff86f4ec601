package coordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.SAdd(ctx, "parsing:active_tasks", "job-1"))
	require.NoError(t, m.SAdd(ctx, "parsing:active_tasks", "job-2"))

	card, err := m.SCard(ctx, "parsing:active_tasks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	ok, err := m.SIsMember(ctx, "parsing:active_tasks", "job-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.SRem(ctx, "parsing:active_tasks", "job-1"))
	card, err = m.SCard(ctx, "parsing:active_tasks")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestMemoryStore_CooldownTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.SetEX(ctx, "parsing:cooldown:book-1", "1", 50*time.Millisecond))

	ttl, err := m.TTL(ctx, "parsing:cooldown:book-1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	time.Sleep(80 * time.Millisecond)

	ttl, err = m.TTL(ctx, "parsing:cooldown:book-1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl)

	_, ok, err := m.Get(ctx, "parsing:cooldown:book-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_QueueOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.ZAdd(ctx, "parsing:queue", 2, "job-b"))
	require.NoError(t, m.ZAdd(ctx, "parsing:queue", 1, "job-a"))
	require.NoError(t, m.ZAdd(ctx, "parsing:queue", 3, "job-c"))

	members, err := m.ZRange(ctx, "parsing:queue", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a", "job-b", "job-c"}, members)

	rank, err := m.ZRank(ctx, "parsing:queue", "job-b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	require.NoError(t, m.ZRem(ctx, "parsing:queue", "job-a"))
	card, err := m.ZCard(ctx, "parsing:queue")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	rank, err = m.ZRank(ctx, "parsing:queue", "job-a")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rank)
}
