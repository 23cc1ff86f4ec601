// Package ingest implements the ingress seam of spec.md §6: a single
// synchronous call that accepts an uploaded book, parses it into
// chapters, and hands the resulting job to the admission/queue layer.
// The HTTP layer (out of scope) is responsible for auth, rate limits,
// CSRF, and file validation; this package trusts the tuple it is given.
//
// This replaces the teacher's PDF-to-page-images ingest.go (pdfcpu +
// pdftoppm + DefraDB) entirely: the domain here is EPUB/FB2 chapter
// text, not page-image rendering, and the destination store is Postgres
// (internal/storage/postgres), not DefraDB.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fancai/orchestrator/internal/admission"
	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/queue"
)

// chapterDraft is a parser's raw output, before a chapter id or book id
// is known.
type chapterDraft struct {
	Title   string
	Content string
	Order   int // 1-based position in reading order
}

// BlobStore persists the raw uploaded book bytes and returns an opaque
// handle (model.Book.RawFileHandle). The real backing store (local disk,
// S3, etc.) is explicitly out of scope; callers inject whatever they
// have.
type BlobStore interface {
	Put(ctx context.Context, bookID string, data []byte) (handle string, err error)
}

// BookStore is the narrow slice of postgres.BookStore ingest needs.
type BookStore interface {
	Create(ctx context.Context, b *model.Book) error
}

// ChapterStore is the narrow slice of postgres.ChapterStore ingest needs.
type ChapterStore interface {
	CreateBatch(ctx context.Context, chapters []*model.Chapter) error
}

// JobStore is the narrow slice of postgres.JobStore ingest needs.
type JobStore interface {
	Create(ctx context.Context, j *model.ParsingJob) error
}

// Gate is the narrow slice of admission.Gate ingest needs.
type Gate interface {
	CanStart(ctx context.Context, bookID, userID string) (admission.Decision, admission.Reason, error)
	DerivePriority(subscriptionTier int, queuedFor time.Duration) int
}

// Request is submit_book's input (spec.md §6): the orchestrator trusts
// this tuple as given by the HTTP layer.
type Request struct {
	BookID           string
	UserID           string
	FileBytes        []byte
	DeclaredFormat   model.BookFormat
	Genre            model.Genre
	SubscriptionTier int // consulted by Gate.DerivePriority
}

// Result is submit_book's output: {accepted, job_id, position?}.
type Result struct {
	Accepted bool
	JobID    string
	Position int // 1-based queue position; 0 if not queued (e.g. rejected)
	Reason   admission.Reason
}

// Ingest wires the format parsers to persistence and the admission
// queue. It holds no long-lived state of its own beyond its
// collaborators.
type Ingest struct {
	blobs    BlobStore
	books    BookStore
	chapters ChapterStore
	jobs     JobStore
	gate     Gate
	pq       *queue.PriorityQueue
	logger   *slog.Logger
}

// New constructs an Ingest.
func New(blobs BlobStore, books BookStore, chapters ChapterStore, jobs JobStore, gate Gate, pq *queue.PriorityQueue, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{blobs: blobs, books: books, chapters: chapters, jobs: jobs, gate: gate, pq: pq, logger: logger}
}

// SubmitBook implements spec.md §6's submit_book: parse the declared
// format, run admission's CanStart once up front and stop only on a
// reject, persist the book and its chapters, create a queued
// ParsingJob, and enqueue it.
func (ig *Ingest) SubmitBook(ctx context.Context, req Request) (Result, error) {
	if req.BookID == "" || req.UserID == "" {
		return Result{}, apperr.Validation("book_id and user_id are required")
	}
	if len(req.FileBytes) == 0 {
		return Result{}, apperr.Validation("file_bytes is empty")
	}

	title, author, drafts, err := parseBook(req.DeclaredFormat, req.FileBytes)
	if err != nil {
		return Result{}, apperr.Validation("parse %s book: %v", req.DeclaredFormat, err)
	}
	if len(drafts) == 0 {
		return Result{}, apperr.Validation("book has no extractable chapters")
	}
	_ = author // no author column on model.Book today; parsed for future use

	// Only a reject (gate 5, hard policy) or an error stops submission
	// here; a defer from gates 1-4 does not, since those are capacity/time dependent
	// and are re-evaluated by queue.Dispatcher at pop time. CanStart stops
	// at the first failing gate, so gate 5 is evaluated only when gates
	// 1-4 pass.
	decision, reason, err := ig.gate.CanStart(ctx, req.BookID, req.UserID)
	if err != nil {
		return Result{}, err
	}
	if decision == admission.DecisionReject {
		return Result{Accepted: false, Reason: reason}, nil
	}

	handle, err := ig.blobs.Put(ctx, req.BookID, req.FileBytes)
	if err != nil {
		return Result{}, apperr.TransientIO(err, "store raw book bytes")
	}

	book := &model.Book{
		ID:            req.BookID,
		OwnerID:       req.UserID,
		Title:         firstNonEmpty(title, deriveTitleFromDraftCount(len(drafts))),
		Format:        req.DeclaredFormat,
		Genre:         req.Genre,
		RawFileHandle: handle,
	}
	if err := ig.books.Create(ctx, book); err != nil {
		return Result{}, fmt.Errorf("create book: %w", err)
	}

	chapters := make([]*model.Chapter, 0, len(drafts))
	for _, d := range drafts {
		chapters = append(chapters, &model.Chapter{
			ID:            uuid.New().String(),
			BookID:        book.ID,
			ChapterNumber: d.Order,
			Title:         d.Title,
			Content:       d.Content,
			WordCount:     len(strings.Fields(d.Content)),
			IsServicePage: looksLikeServicePage(d),
		})
	}
	if err := ig.chapters.CreateBatch(ctx, chapters); err != nil {
		return Result{}, fmt.Errorf("create chapters: %w", err)
	}

	jobID := uuid.New().String()
	priority := ig.gate.DerivePriority(req.SubscriptionTier, 0)
	job := &model.ParsingJob{
		ID:       jobID,
		BookID:   book.ID,
		UserID:   req.UserID,
		State:    model.JobQueued,
		Priority: priority,
		QueuedAt: time.Now(),
	}
	if err := ig.jobs.Create(ctx, job); err != nil {
		return Result{}, fmt.Errorf("create job: %w", err)
	}

	task := &queue.Task{JobID: jobID, BookID: book.ID, UserID: req.UserID, Priority: priority, QueuedAt: job.QueuedAt}
	if err := ig.pq.Push(ctx, task); err != nil {
		return Result{}, fmt.Errorf("enqueue job: %w", err)
	}

	position, err := ig.pq.PositionOf(ctx, jobID)
	if err != nil {
		ig.logger.Warn("ingest: could not determine queue position", "job_id", jobID, "err", err)
		position = 0
	}

	ig.logger.Info("ingest: book submitted", "book_id", book.ID, "job_id", jobID, "chapters", len(chapters), "priority", priority)
	return Result{Accepted: true, JobID: jobID, Position: position, Reason: reason}, nil
}

// parseBook dispatches to the format-specific parser.
func parseBook(format model.BookFormat, data []byte) (title, author string, chapters []chapterDraft, err error) {
	switch format {
	case model.FormatEPUB:
		return parseEPUB(data)
	case model.FormatFB2:
		return parseFB2(data)
	default:
		return "", "", nil, fmt.Errorf("unsupported book format %q", format)
	}
}

// looksLikeServicePage flags a short chapter whose title matches common
// front/back-matter labels (title page, table of contents, copyright
// notice) so the chapter pipeline can skip description extraction on it
// per spec.md's "service pages are skipped" invariant.
func looksLikeServicePage(d chapterDraft) bool {
	if len(strings.Fields(d.Content)) > 80 {
		return false
	}
	lower := strings.ToLower(d.Title)
	for _, marker := range []string{"title page", "contents", "copyright", "colophon", "cover", "about the author", "dedication"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deriveTitleFromDraftCount(n int) string {
	return fmt.Sprintf("Untitled (%d chapters)", n)
}
