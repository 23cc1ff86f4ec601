package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// DescriptionStore persists one chapter's final description batch.
type DescriptionStore interface {
	InsertBatch(ctx context.Context, descs []*model.Description) error
}

// ImageDispatcher emits image-generation requests for the
// highest-priority descriptions of a chapter (spec.md §4.4 step 7),
// mirroring spec.md §6's egress contract
// request_image(description_id, chapter_id, description_text,
// description_type, priority).
type ImageDispatcher interface {
	Dispatch(ctx context.Context, chapterID, descriptionID string, descType model.DescriptionType, content string, priority float64) error
}

// Config bounds the common post-strategy steps (spec.md §6).
type Config struct {
	ImageTopK         int     // default 3
	ImagePriorityFloor float64 // default 0.65, tau_img
}

func (c Config) withDefaults() Config {
	if c.ImageTopK <= 0 {
		c.ImageTopK = 3
	}
	if c.ImagePriorityFloor <= 0 {
		c.ImagePriorityFloor = 0.65
	}
	return c
}

// Pipeline runs a Strategy over a chapter's available processors, then
// applies the shared type-mapping/scoring/filter/dedupe/persist/
// image-dispatch steps of spec.md §4.4.
type Pipeline struct {
	factory     *StrategyFactory
	descs       DescriptionStore
	images      ImageDispatcher
	cfg         Config
	logger      *slog.Logger
}

// New constructs a Pipeline.
func New(factory *StrategyFactory, descs DescriptionStore, images ImageDispatcher, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		factory: factory,
		descs:   descs,
		images:  images,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Run executes mode's Strategy over chapter using procs, then the
// shared post-strategy steps, persisting the result and emitting image
// requests. It returns the count of descriptions persisted.
func (p *Pipeline) Run(ctx context.Context, mode ProcessingMode, chapter *model.Chapter, procs []processors.Processor) (int, error) {
	strategy, err := p.factory.Get(mode)
	if err != nil {
		return 0, err
	}

	raw, err := strategy.Run(ctx, chapter, procs)
	if err != nil {
		return 0, fmt.Errorf("strategy %s: %w", mode, err)
	}

	candidates := p.scoreAndFilter(raw)
	candidates = dedupe(candidates)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].priority > candidates[j].priority })

	descriptions := make([]*model.Description, 0, len(candidates))
	for i, c := range candidates {
		descriptions = append(descriptions, &model.Description{
			ID:                      uuid.New().String(),
			ChapterID:               chapter.ID,
			Type:                    model.DescriptionType(c.typ),
			Content:                 c.content,
			Context:                 c.context,
			ConfidenceScore:         c.confidence,
			PriorityScore:           c.priority,
			PositionInChapter:       i,
			WordCount:               len(strings.Fields(c.content)),
			IsSuitableForGeneration: c.priority >= p.cfg.ImagePriorityFloor,
		})
	}

	if err := p.descs.InsertBatch(ctx, descriptions); err != nil {
		return 0, fmt.Errorf("persist descriptions: %w", err)
	}

	p.dispatchImages(ctx, chapter.ID, descriptions)

	return len(descriptions), nil
}

// scoreAndFilter applies steps 1-3 (type mapping, quality scoring,
// filtering) to the strategy's raw output.
func (p *Pipeline) scoreAndFilter(raw []processors.RawDescription) []scored {
	out := make([]scored, 0, len(raw))
	for _, r := range raw {
		typ := normalizeType(r.Type, r.Content)

		if !passesFilter(r.Content, r.Confidence) {
			continue
		}

		quality := qualityScore(r.Content)
		confidence := r.Confidence
		if r.ConsensusBoost > 0 {
			confidence = clamp01(confidence * r.ConsensusBoost)
		}
		priority := priorityScore(confidence, typ, quality)

		out = append(out, scored{
			typ:        string(typ),
			content:    strings.TrimSpace(r.Content),
			context:    r.Context,
			charStart:  r.CharStart,
			charEnd:    r.CharEnd,
			confidence: confidence,
			quality:    quality,
			priority:   priority,
		})
	}
	return out
}

// dispatchImages emits requests for the top-K descriptions (already
// priority-sorted by Run) that clear ImagePriorityFloor (spec.md §4.4
// step 7).
func (p *Pipeline) dispatchImages(ctx context.Context, chapterID string, descriptions []*model.Description) {
	if p.images == nil {
		return
	}
	sent := 0
	for _, d := range descriptions {
		if sent >= p.cfg.ImageTopK {
			return
		}
		if d.PriorityScore < p.cfg.ImagePriorityFloor {
			continue
		}
		if err := p.images.Dispatch(ctx, chapterID, d.ID, d.Type, d.Content, d.PriorityScore); err != nil {
			p.logger.Error("image dispatch failed", "description_id", d.ID, "err", err)
			continue
		}
		sent++
	}
}
