package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

func newTestGate(t *testing.T, cfg Config) (*Gate, coordstore.Store) {
	t.Helper()
	store := coordstore.NewMemoryStore()
	healthySample := func(ctx context.Context) (ResourceSample, error) {
		return ResourceSample{MemoryPercent: 10, AvailableMemoryMB: 8192, CPUPercent: 10}, nil
	}
	return New(store, cfg, healthySample, nil, nil, nil), store
}

func defaultCfg() Config {
	return Config{
		MaxConcurrentGlobal:  5,
		MaxConcurrentPerUser: 1,
		CooldownPerBook:      60 * time.Second,
		MaxMemoryPercent:     85,
		MaxCPUPercent:        90,
		MinFreeMemoryMB:      500,
		AgePromotionInterval: 300 * time.Second,
	}
}

func TestCanStart_Admits_WhenAllGatesPass(t *testing.T) {
	g, _ := newTestGate(t, defaultCfg())
	decision, reason, err := g.CanStart(context.Background(), "book-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionAdmit, decision)
	assert.Equal(t, ReasonNone, reason)
}

func TestCanStart_Defers_OnCooldown(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGate(t, defaultCfg())

	ok, err := g.AcquireSlot(ctx, "book-1", "user-1", "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.ReleaseSlot(ctx, "book-1", "user-1", "job-1"))

	decision, reason, err := g.CanStart(ctx, "book-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonCooldown, reason)
}

// Scenario 2 (spec.md §8): capacity breach — 6 books from 6 users with
// max_concurrent_global=5 yields 5 admits and 1 defer.
func TestCanStart_GlobalConcurrency_CapacityBreach(t *testing.T) {
	ctx := context.Background()
	cfg := defaultCfg()
	g, _ := newTestGate(t, cfg)

	admitted := 0
	for i := 0; i < 5; i++ {
		bookID := "book-" + string(rune('a'+i))
		userID := "user-" + string(rune('a'+i))
		decision, _, err := g.CanStart(ctx, bookID, userID)
		require.NoError(t, err)
		require.Equal(t, DecisionAdmit, decision)
		ok, err := g.AcquireSlot(ctx, bookID, userID, bookID+"-job")
		require.NoError(t, err)
		require.True(t, ok)
		admitted++
	}
	assert.Equal(t, 5, admitted)

	decision, reason, err := g.CanStart(ctx, "book-f", "user-f")
	require.NoError(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonGlobalConcurrency, reason)
}

// Scenario 3 (spec.md §8): per-user quota — B1 admitted, B2 deferred with
// reason user_quota.
func TestCanStart_PerUserQuota(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGate(t, defaultCfg())

	ok, err := g.AcquireSlot(ctx, "book-1", "user-u", "job-1")
	require.NoError(t, err)
	require.True(t, ok)

	decision, reason, err := g.CanStart(ctx, "book-2", "user-u")
	require.NoError(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonUserQuota, reason)
}

func TestCanStart_SystemResources(t *testing.T) {
	cfg := defaultCfg()
	store := coordstore.NewMemoryStore()
	unhealthySample := func(ctx context.Context) (ResourceSample, error) {
		return ResourceSample{MemoryPercent: 90, AvailableMemoryMB: 8192, CPUPercent: 10}, nil
	}
	g := New(store, cfg, unhealthySample, nil, nil, nil)

	decision, reason, err := g.CanStart(context.Background(), "book-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonSystemResources, reason)
}

func TestCanStart_FailsClosed_OnCoordinationUnavailable(t *testing.T) {
	g := New(&unreachableStore{}, defaultCfg(), nil, nil, nil, nil)
	decision, reason, err := g.CanStart(context.Background(), "book-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonCoordinationUnavailable, reason)
}

func TestReleaseSlot_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGate(t, defaultCfg())

	require.NoError(t, g.ReleaseSlot(ctx, "book-1", "user-1", "job-never-acquired"))
	require.NoError(t, g.ReleaseSlot(ctx, "book-1", "user-1", "job-never-acquired"))
}

// Cooldown boundary (spec.md §8): acquire_slot at t makes admission defer
// at t+cooldown-1s and admit at t+cooldown+1s.
func TestCooldown_Boundary(t *testing.T) {
	ctx := context.Background()
	cfg := defaultCfg()
	cfg.CooldownPerBook = 80 * time.Millisecond
	g, _ := newTestGate(t, cfg)

	ok, err := g.AcquireSlot(ctx, "book-1", "user-1", "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.ReleaseSlot(ctx, "book-1", "user-1", "job-1"))

	time.Sleep(30 * time.Millisecond)
	decision, reason, err := g.CanStart(ctx, "book-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, DecisionDefer, decision)
	assert.Equal(t, ReasonCooldown, reason)

	time.Sleep(80 * time.Millisecond)
	decision, _, err = g.CanStart(ctx, "book-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, DecisionAdmit, decision)
}

func TestDerivePriority_AgePromotion(t *testing.T) {
	g, _ := newTestGate(t, defaultCfg())
	assert.Equal(t, 5, g.DerivePriority(5, 0))
	assert.Equal(t, 4, g.DerivePriority(5, 300*time.Second))
	assert.Equal(t, 3, g.DerivePriority(5, 600*time.Second))
	assert.Equal(t, 1, g.DerivePriority(5, 10*300*time.Second)) // floors at 1
}

type unreachableStore struct {
	coordstore.MemoryStore
}

func (u *unreachableStore) Ping(ctx context.Context) error {
	return assertErr
}

var assertErr = errAssert{}

type errAssert struct{}

func (errAssert) Error() string { return "coordination store unreachable" }
