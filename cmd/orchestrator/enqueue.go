package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fancai/orchestrator/internal/admission"
	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/ingest"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/queue"
	"github.com/fancai/orchestrator/internal/svcctx"
)

var (
	enqueueBookID string
	enqueueUserID string
	enqueueTier   int
	enqueueFile   string
	enqueueFormat string
	enqueueGenre  string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Submit a new book or re-queue an existing one",
	Long: `With --file, enqueue parses and persists a new book
(internal/ingest.SubmitBook) and queues its extraction job — this is
the CLI's only surface for submit_book, since SPEC_FULL.md names no
separate "submit" subcommand. Without --file, enqueue looks up an
already-persisted book by --book and queues a fresh ParsingJob for it,
for re-running extraction or recovering from a dropped job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		svc, closeFn, err := buildServices(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		ctx = svcctx.WithServices(ctx, svc)

		if enqueueFile != "" {
			return runSubmitBook(ctx, svc)
		}
		return runRequeueExisting(ctx, svc)
	},
}

func runSubmitBook(ctx context.Context, svc *svcctx.Services) error {
	data, err := os.ReadFile(enqueueFile)
	if err != nil {
		return apperr.Validation("read %s: %v", enqueueFile, err)
	}

	format := model.BookFormat(enqueueFormat)
	if format != model.FormatEPUB && format != model.FormatFB2 {
		return apperr.Validation("unknown format %q: must be epub or fb2", enqueueFormat)
	}

	result, err := svc.Ingest.SubmitBook(ctx, ingest.Request{
		BookID:           enqueueBookID,
		UserID:           enqueueUserID,
		FileBytes:        data,
		DeclaredFormat:   format,
		Genre:            model.Genre(enqueueGenre),
		SubscriptionTier: enqueueTier,
	})
	if err != nil {
		return err
	}
	if !result.Accepted {
		fmt.Printf("rejected: %s\n", result.Reason)
		return nil
	}
	fmt.Printf("accepted: job_id=%s position=%d\n", result.JobID, result.Position)
	return nil
}

func runRequeueExisting(ctx context.Context, svc *svcctx.Services) error {
	book, err := svc.Books.Get(ctx, enqueueBookID)
	if err != nil {
		return fmt.Errorf("look up book %s: %w", enqueueBookID, err)
	}

	jobID := admission.NewJobID()
	priority := svc.Gate.DerivePriority(enqueueTier, 0)
	now := time.Now()

	job := &model.ParsingJob{
		ID:       jobID,
		BookID:   book.ID,
		UserID:   enqueueUserID,
		State:    model.JobQueued,
		Priority: priority,
		QueuedAt: now,
	}
	if err := svc.Jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if err := svc.Queue.Push(ctx, &queue.Task{
		JobID:    jobID,
		BookID:   book.ID,
		UserID:   enqueueUserID,
		Priority: priority,
		QueuedAt: now,
	}); err != nil {
		return fmt.Errorf("queue job: %w", err)
	}
	svc.Dispatcher.NotifyRelease()

	position, err := svc.Queue.PositionOf(ctx, jobID)
	if err != nil {
		logger := svc.Logger
		logger.Warn("job queued but position lookup failed", "job_id", jobID, "err", err)
		fmt.Printf("queued: job_id=%s\n", jobID)
		return nil
	}
	fmt.Printf("queued: job_id=%s position=%d\n", jobID, position)
	return nil
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueBookID, "book", "", "book ID (required)")
	enqueueCmd.Flags().StringVar(&enqueueUserID, "user", "", "owning user ID (required)")
	enqueueCmd.Flags().IntVar(&enqueueTier, "tier", 0, "subscription tier, consulted for priority derivation")
	enqueueCmd.Flags().StringVar(&enqueueFile, "file", "", "path to an EPUB/FB2 file to submit as a new book")
	enqueueCmd.Flags().StringVar(&enqueueFormat, "format", "epub", "declared book format when --file is set: epub or fb2")
	enqueueCmd.Flags().StringVar(&enqueueGenre, "genre", "other", "book genre when --file is set")
	_ = enqueueCmd.MarkFlagRequired("book")
	_ = enqueueCmd.MarkFlagRequired("user")
}
