package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/jobs"
)

var cancelJobID string

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Request cooperative cancellation of a running or queued job",
	Long: `cancel marks a job for cancellation in the coordination store.
A running job checks the flag at each chapter boundary
(internal/jobs.CancelChecker) and stops there. A queued job stays in
the queue; it stops at its first chapter boundary once dispatched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelJobID == "" {
			return apperr.Validation("--job is required")
		}
		ctx := cmd.Context()
		logger := newLogger()

		svc, closeFn, err := buildServices(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := jobs.RequestCancel(ctx, svc.Coord, cancelJobID); err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		fmt.Printf("cancellation requested: job_id=%s\n", cancelJobID)
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelJobID, "job", "", "job ID to cancel (required)")
	_ = cancelCmd.MarkFlagRequired("job")
}
