package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

func TestCoordCancelChecker_ReflectsRequestAndClear(t *testing.T) {
	store := coordstore.NewMemoryStore()
	check := CoordCancelChecker(store)

	cancelled, err := check(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, RequestCancel(context.Background(), store, "job-1"))
	cancelled, err = check(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, cancelled)

	require.NoError(t, ClearCancel(context.Background(), store, "job-1"))
	cancelled, err = check(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}
