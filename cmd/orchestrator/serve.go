package main

import (
	"github.com/spf13/cobra"

	"github.com/fancai/orchestrator/internal/svcctx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full orchestrator: all executor pools, the dispatcher, and the reconciler",
	Long: `serve builds the complete service graph and runs every queue class
(heavy, normal, light) side by side, plus the queue dispatcher and the
stuck-job reconciler. Stop with SIGINT/SIGTERM; a second signal forces
an immediate exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		svc, closeFn, err := buildServices(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx = svcctx.WithServices(ctx, svc)

		for class, pool := range svc.Pools {
			pool := pool
			logger.Info("starting executor pool", "class", class)
			go pool.Start(ctx)
		}

		go svc.Reconciler.Run(ctx)

		logger.Info("orchestrator serving", "queues", "heavy,normal,light")
		svc.Dispatcher.Run(ctx)
		return nil
	},
}
