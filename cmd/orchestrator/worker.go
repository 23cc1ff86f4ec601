package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/jobs"
	"github.com/fancai/orchestrator/internal/svcctx"
)

var workerQueues string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the dispatcher, reconciler, and a chosen subset of executor pools",
	Long: `worker builds the same service graph as serve but only starts the
executor pools named by --queues. Tasks routed to a pool that isn't
running here simply queue in that pool's input channel until a process
that does run it picks them up (internal/queue.PriorityQueue and every
jobs.Pool are in-process state, so that process must be this one;
true multi-process horizontal scaling is out of scope, see DESIGN.md).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		classes, err := parseQueueClasses(workerQueues)
		if err != nil {
			return apperr.Validation("%v", err)
		}

		ctx := cmd.Context()
		logger := newLogger()

		svc, closeFn, err := buildServices(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx = svcctx.WithServices(ctx, svc)

		for _, class := range classes {
			pool, ok := svc.Pools[class]
			if !ok {
				return apperr.Validation("no pool configured for queue class %q", class)
			}
			logger.Info("starting executor pool", "class", class)
			go pool.Start(ctx)
		}

		go svc.Reconciler.Run(ctx)

		logger.Info("orchestrator worker running", "queues", classes)
		svc.Dispatcher.Run(ctx)
		return nil
	},
}

func parseQueueClasses(raw string) ([]jobs.QueueClass, error) {
	if strings.TrimSpace(raw) == "" {
		return []jobs.QueueClass{jobs.QueueHeavy, jobs.QueueNormal, jobs.QueueLight}, nil
	}
	parts := strings.Split(raw, ",")
	classes := make([]jobs.QueueClass, 0, len(parts))
	for _, p := range parts {
		switch jobs.QueueClass(strings.TrimSpace(p)) {
		case jobs.QueueHeavy:
			classes = append(classes, jobs.QueueHeavy)
		case jobs.QueueNormal:
			classes = append(classes, jobs.QueueNormal)
		case jobs.QueueLight:
			classes = append(classes, jobs.QueueLight)
		default:
			return nil, fmt.Errorf("unknown queue class %q: must be heavy, normal, or light", p)
		}
	}
	return classes, nil
}

func init() {
	workerCmd.Flags().StringVar(&workerQueues, "queues", "", "comma-separated queue classes to run (default: all of heavy,normal,light)")
}
