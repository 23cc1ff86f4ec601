// Package jobs implements the Worker Execution Model of spec.md §4.3:
// chapter work units routed to heavy/normal/light executor pools,
// generalizing the teacher's internal/jobs/scheduler.go + worker.go from
// "LLM/OCR work units routed to provider workers" to "chapter work units
// routed by queue class".
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/model"
)

// ErrCancelled is returned by Run when the job observes a user-initiated
// cancel flag at a chapter boundary.
var ErrCancelled = errors.New("job cancelled")

// maxConsecutiveChapterFailures is spec.md §7's "Pipeline-level errors
// abort the chapter but not the job unless >= 3 consecutive chapters
// fail" threshold.
const maxConsecutiveChapterFailures = 3

// QueueClass routes a job to one of the three executor pools named by the
// CLI's --queues heavy,normal,light (spec.md §6).
type QueueClass string

const (
	QueueHeavy  QueueClass = "heavy"
	QueueNormal QueueClass = "normal"
	QueueLight  QueueClass = "light"
)

// ChapterProcessor extracts descriptions from a single chapter. It is the
// seam internal/pipeline implements: a Strategy-driven extraction run
// followed by filter/dedupe/prioritize/persist/enqueue-images (spec.md
// §4.4), returning how many descriptions were found so the caller can
// stamp Chapter.DescriptionsFound.
type ChapterProcessor interface {
	ProcessChapter(ctx context.Context, book *model.Book, chapter *model.Chapter) (descriptionsFound int, err error)
}

// BookStore is the narrow slice of internal/storage/postgres.BookStore a
// job needs.
type BookStore interface {
	Get(ctx context.Context, id string) (*model.Book, error)
	SetProcessing(ctx context.Context, id string, processing bool) error
	SetParsed(ctx context.Context, id string, parsed bool) error
}

// ChapterStore is the narrow slice of internal/storage/postgres.ChapterStore
// a job needs.
type ChapterStore interface {
	ListUnparsed(ctx context.Context, bookID string) ([]*model.Chapter, error)
	MarkParsed(ctx context.Context, id string, descriptionsFound int) error
}

// CancelChecker reports whether a user has requested cancellation of
// jobID; the executor observes it at chapter boundaries (spec.md §4.3
// "User-initiated cancel writes a flag that the executor observes at
// chapter boundaries").
type CancelChecker func(ctx context.Context, jobID string) (bool, error)

// ParsingJob runs one admitted book parse: it iterates the book's
// unparsed chapters in order (cooperative scheduling across chapter
// boundaries, per spec.md §5 "Scheduling model"), invoking Processor for
// each and checking for soft/hard timeout and cancellation between
// chapters.
type ParsingJob struct {
	Record *model.ParsingJob

	Books      BookStore
	Chapters   ChapterStore
	Processor  ChapterProcessor
	IsCancelled CancelChecker

	// SoftDeadline/HardDeadline bound this run, stamped by the worker
	// from the job's started_at + soft/hard time limit config.
	SoftDeadline time.Time
	HardDeadline time.Time

	// SkipServicePages mirrors internal/config.Config.SkipServicePages
	// (spec.md §6): when true, chapters flagged IsServicePage at ingest
	// time are marked parsed with zero descriptions instead of being run
	// through Processor.
	SkipServicePages bool

	Logger *slog.Logger
}

// ID returns the job's persisted identifier.
func (j *ParsingJob) ID() string { return j.Record.ID }

// Run executes the chapter loop. It returns ErrCancelled if the job was
// cancelled mid-run, context.DeadlineExceeded if the hard deadline was
// reached (the caller supplies a ctx bounded by HardDeadline), or a
// store error. When the soft deadline has passed at a chapter boundary
// it stops there and returns a retriable apperr Timeout error. After
// maxConsecutiveChapterFailures chapters fail in a row it returns the
// last chapter's error, wrapped so its apperr kind is kept.
func (j *ParsingJob) Run(ctx context.Context) error {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chapters, err := j.Chapters.ListUnparsed(ctx, j.Record.BookID)
	if err != nil {
		return err
	}

	consecutiveFailures := 0
	for _, chapter := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if j.SoftExceeded() {
			return apperr.Timeout("job %s exceeded its soft time limit", j.Record.ID)
		}

		if j.IsCancelled != nil {
			cancelled, err := j.IsCancelled(ctx, j.Record.ID)
			if err != nil {
				return err
			}
			if cancelled {
				return ErrCancelled
			}
		}

		if j.SkipServicePages && chapter.IsServicePage {
			logger.Debug("skipping service page chapter",
				"job_id", j.Record.ID, "chapter_id", chapter.ID)
			if err := j.Chapters.MarkParsed(ctx, chapter.ID, 0); err != nil {
				return err
			}
			continue
		}

		book, err := j.Books.Get(ctx, j.Record.BookID)
		if err != nil {
			return err
		}

		found, err := j.Processor.ProcessChapter(ctx, book, chapter)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			consecutiveFailures++
			logger.Warn("chapter processing failed, skipping",
				"job_id", j.Record.ID, "chapter_id", chapter.ID,
				"consecutive_failures", consecutiveFailures, "err", err)
			if consecutiveFailures >= maxConsecutiveChapterFailures {
				return fmt.Errorf("%d consecutive chapters failed, aborting job %s: %w", consecutiveFailures, j.Record.ID, err)
			}
			continue
		}
		consecutiveFailures = 0

		if err := j.Chapters.MarkParsed(ctx, chapter.ID, found); err != nil {
			return err
		}
	}

	return j.Books.SetParsed(ctx, j.Record.BookID, true)
}

// SoftExceeded reports whether the soft deadline has passed.
func (j *ParsingJob) SoftExceeded() bool {
	return !j.SoftDeadline.IsZero() && time.Now().After(j.SoftDeadline)
}
