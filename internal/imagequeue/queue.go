// Package imagequeue implements the egress seam of spec.md §6:
// request_image(description_id OR (chapter_id, description_text,
// description_type), owner_id, priority) -> deferred result. The real
// image-generation HTTP client is explicitly out of scope
// (SPEC_FULL.md Non-goals); this package provides the Requester
// contract plus a default in-memory/log-sink implementation, and the
// internal/pipeline.ImageDispatcher adapter that bridges the pipeline's
// per-chapter dispatch call to it.
package imagequeue

import (
	"context"
	"log/slog"

	"github.com/fancai/orchestrator/internal/model"
)

// Request is one deferred image-generation request. Delivery is
// at-least-once, deduplicated downstream by IdempotencyKey.
type Request struct {
	DescriptionID   string
	ChapterID       string
	OwnerID         string
	DescriptionText string
	DescriptionType model.DescriptionType
	Priority        float64
	IdempotencyKey  string
}

// Requester is the egress contract to the image-generation subsystem.
// The orchestrator never calls image APIs directly (spec.md §6); a real
// implementation would publish to a broker or call an HTTP endpoint.
type Requester interface {
	RequestImage(ctx context.Context, req Request) error
}

// LogSink is the default Requester: it logs the request and returns
// success. It exists so Dispatcher is usable out of the box, matching
// spec.md's framing of the image subsystem as an external collaborator
// the orchestrator only emits requests toward.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// RequestImage logs req at info level.
func (s *LogSink) RequestImage(ctx context.Context, req Request) error {
	s.logger.Info("imagequeue: image generation requested",
		"description_id", req.DescriptionID,
		"chapter_id", req.ChapterID,
		"owner_id", req.OwnerID,
		"type", req.DescriptionType,
		"priority", req.Priority,
		"idempotency_key", req.IdempotencyKey)
	return nil
}

var _ Requester = (*LogSink)(nil)

// OwnerResolver maps a chapter to the user who owns its book, since
// internal/pipeline's narrow ImageDispatcher call does not carry an
// owner id (the pipeline operates on chapters, not owners).
type OwnerResolver func(ctx context.Context, chapterID string) (ownerID string, err error)

// Dispatcher adapts a Requester to internal/pipeline.ImageDispatcher.
type Dispatcher struct {
	requester    Requester
	resolveOwner OwnerResolver
	logger       *slog.Logger
}

// NewDispatcher constructs a Dispatcher. resolveOwner may be nil, in
// which case requests carry an empty OwnerID.
func NewDispatcher(requester Requester, resolveOwner OwnerResolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{requester: requester, resolveOwner: resolveOwner, logger: logger}
}

// Dispatch implements internal/pipeline.ImageDispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, chapterID, descriptionID string, descType model.DescriptionType, content string, priority float64) error {
	var ownerID string
	if d.resolveOwner != nil {
		resolved, err := d.resolveOwner(ctx, chapterID)
		if err != nil {
			d.logger.Warn("imagequeue: owner resolution failed, dispatching without owner_id", "chapter_id", chapterID, "err", err)
		} else {
			ownerID = resolved
		}
	}

	req := Request{
		DescriptionID:   descriptionID,
		ChapterID:       chapterID,
		OwnerID:         ownerID,
		DescriptionText: content,
		DescriptionType: descType,
		Priority:        priority,
		IdempotencyKey:  Key(descriptionID, chapterID, content),
	}
	return d.requester.RequestImage(ctx, req)
}
