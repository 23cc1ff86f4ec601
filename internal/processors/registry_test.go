package processors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/model"
)

// stubProcessor is a minimal Processor+Weighted fake for exercising
// registry lifecycle methods; Extract is never called by these tests.
type stubProcessor struct {
	name         string
	available    bool
	priorityRank int
	loadErr      error
}

func (s *stubProcessor) Name() string                        { return s.name }
func (s *stubProcessor) IsAvailable(ctx context.Context) bool { return s.available }
func (s *stubProcessor) Load(ctx context.Context) error       { return s.loadErr }
func (s *stubProcessor) Extract(ctx context.Context, chapter *model.Chapter) ([]RawDescription, error) {
	return nil, nil
}
func (s *stubProcessor) Weight() float64    { return 1 }
func (s *stubProcessor) Threshold() float64 { return 0.2 }
func (s *stubProcessor) PriorityRank() int  { return s.priorityRank }

func newFakeFactory(available bool, priorityRank int, loadErr error) Factory {
	return func(name string, cfg Config) (Processor, error) {
		return &stubProcessor{name: name, available: available, priorityRank: priorityRank, loadErr: loadErr}, nil
	}
}

func TestRegistry_Reload_CreatesEnabledProcessors(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFactory("stub", newFakeFactory(true, 5, nil))

	err := r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true, PriorityRank: 5},
		"b": {Type: "stub", Enabled: false, PriorityRank: 1},
	})
	require.NoError(t, err)

	names := r.Names()
	assert.ElementsMatch(t, []string{"a"}, names)

	proc, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", proc.Name())
}

func TestRegistry_Get_UnknownReturnsErrNotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_Reload_RemovesDisabledOrDroppedEntries(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFactory("stub", newFakeFactory(true, 1, nil))

	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true},
		"b": {Type: "stub", Enabled: true},
	}))
	assert.Len(t, r.Names(), 2)

	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true},
	}))
	assert.Equal(t, []string{"a"}, r.Names())
}

func TestRegistry_Reload_SkipsConstructionErrorsWithoutFailingReload(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFactory("broken", func(name string, cfg Config) (Processor, error) {
		return nil, errors.New("construction failed")
	})

	err := r.Reload(context.Background(), map[string]Config{
		"a": {Type: "broken", Enabled: true},
	})
	require.NoError(t, err)
	assert.Empty(t, r.Names())
}

func TestRegistry_Reload_SkipsLoadFailures(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFactory("stub", newFakeFactory(true, 1, errors.New("load failed")))

	err := r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true},
	})
	require.NoError(t, err)
	assert.Empty(t, r.Names())
}

func TestRegistry_Available_FiltersUnavailableAndOrdersByPriorityRank(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFactory("avail5", newFakeFactory(true, 5, nil))
	r.RegisterFactory("avail1", newFakeFactory(true, 1, nil))
	r.RegisterFactory("unavailable", newFakeFactory(false, 2, nil))

	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"mid":  {Type: "avail5", Enabled: true},
		"top":  {Type: "avail1", Enabled: true},
		"down": {Type: "unavailable", Enabled: true},
	}))

	available := r.Available(context.Background())
	require.Len(t, available, 2)
	assert.Equal(t, "top", available[0].Name())
	assert.Equal(t, "mid", available[1].Name())
}

func TestRegistry_Reload_RebuildsWhenConfigChanges(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	r.RegisterFactory("stub", func(name string, cfg Config) (Processor, error) {
		calls++
		return &stubProcessor{name: name, available: true, priorityRank: cfg.PriorityRank}, nil
	})

	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true, PriorityRank: 1},
	}))
	assert.Equal(t, 1, calls)

	// Same config: no rebuild.
	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true, PriorityRank: 1},
	}))
	assert.Equal(t, 1, calls)

	// Changed config: rebuild.
	require.NoError(t, r.Reload(context.Background(), map[string]Config{
		"a": {Type: "stub", Enabled: true, PriorityRank: 2},
	}))
	assert.Equal(t, 2, calls)
}
