package jobs

import (
	"context"

	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

// cancelledJobsKey is the coordination-store set a cancel request adds
// to and CoordCancelChecker reads from: "user-initiated cancel writes a
// flag that the executor observes at chapter boundaries" (spec.md §4.3).
const cancelledJobsKey = "jobs:cancelled"

// RequestCancel flags jobID for cancellation. The CLI's `cancel --job`
// subcommand calls this; the running executor observes it via
// CoordCancelChecker at the next chapter boundary.
func RequestCancel(ctx context.Context, store coordstore.Store, jobID string) error {
	return store.SAdd(ctx, cancelledJobsKey, jobID)
}

// ClearCancel removes jobID's cancel flag once its job has reached a
// terminal state, so the set does not grow unbounded.
func ClearCancel(ctx context.Context, store coordstore.Store, jobID string) error {
	return store.SRem(ctx, cancelledJobsKey, jobID)
}

// CoordCancelChecker adapts a coordstore.Store to CancelChecker.
func CoordCancelChecker(store coordstore.Store) CancelChecker {
	return func(ctx context.Context, jobID string) (bool, error) {
		return store.SIsMember(ctx, cancelledJobsKey, jobID)
	}
}
