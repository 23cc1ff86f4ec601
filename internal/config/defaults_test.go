package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory Store used for testing the defaults
// seeding logic without a live Postgres connection.
type memStore struct {
	entries map[string]Entry
}

func newMemStore() *memStore { return &memStore{entries: make(map[string]Entry)} }

func (m *memStore) Get(_ context.Context, key string) (*Entry, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, description string) error {
	m.entries[key] = Entry{Key: key, Value: value, Description: description}
	return nil
}

func (m *memStore) GetAll(_ context.Context) (map[string]Entry, error) {
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) GetByPrefix(_ context.Context, prefix string) (map[string]Entry, error) {
	out := make(map[string]Entry)
	for k, v := range m.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func TestSeedDefaults_IsIdempotent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	require.NoError(t, SeedDefaults(ctx, store, nil))
	first, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultEntries()), len(first))

	// Mutate one entry, then re-seed: seeding must not clobber it.
	require.NoError(t, store.Set(ctx, "processors.llm.enabled", false, "disabled by operator"))
	require.NoError(t, SeedDefaults(ctx, store, nil))

	entry, err := store.Get(ctx, "processors.llm.enabled")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, false, entry.Value)
}

func TestResetToDefault(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "processors.llm.enabled", false, "disabled"))

	require.NoError(t, ResetToDefault(ctx, store, "processors.llm.enabled"))

	entry, err := store.Get(ctx, "processors.llm.enabled")
	require.NoError(t, err)
	assert.Equal(t, true, entry.Value)
}

func TestResetToDefault_UnknownKey(t *testing.T) {
	store := newMemStore()
	err := ResetToDefault(context.Background(), store, "no.such.key")
	assert.ErrorIs(t, err, ErrNoDefault)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"processors.llm.enabled", false},
		{"valid-key_123", false},
		{"", true},
		{".leading.dot", true},
		{"trailing.dot.", true},
		{"has space", true},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if tt.wantErr {
			assert.Error(t, err, tt.key)
		} else {
			assert.NoError(t, err, tt.key)
		}
	}
}
