// Package processors defines the pluggable NLP processor contract of
// spec.md §4.4 ("ensemble of processors") and a config-driven registry,
// generalizing the teacher's internal/providers/{provider,registry}.go
// from an LLM/OCR/TTS provider contract to a description-extraction
// contract.
package processors

import (
	"context"
	"time"

	"github.com/fancai/orchestrator/internal/model"
)

// RawDescription is a single span a Processor extracted from a chapter,
// before the pipeline's type-mapping/dedup/scoring passes run.
type RawDescription struct {
	Type       model.DescriptionType
	Content    string
	Context    string
	CharStart  int
	CharEnd    int
	Confidence float64 // [0,1]

	// ConsensusBoost is set by internal/pipeline/ensemble's voter to
	// 1 + 0.1*(n_sources-1) (spec.md §4.5); the pipeline's
	// priority-scoring step multiplies confidence by it and clamps the
	// product to 1.0. Zero means "no ensemble ran" and the pipeline
	// treats it as a 1.0 multiplier.
	ConsensusBoost float64
	// SourceCount is the number of processors whose output contributed
	// to this description after ensemble clustering; zero outside
	// ensemble mode.
	SourceCount int
}

// Processor is the is_available/load/extract contract every NLP
// processor implements (spec.md §4.4), mirroring the shape of the
// teacher's LLMClient/OCRProvider interfaces.
type Processor interface {
	// Name returns the processor's registry key (e.g. "keyword", "llm").
	Name() string

	// IsAvailable reports whether the processor can currently accept
	// work (e.g. an LLM-backed processor whose API key failed recent
	// health checks reports false).
	IsAvailable(ctx context.Context) bool

	// Load performs any expensive one-time initialization (model
	// download, client handshake). Called once by the registry before
	// the processor is first used.
	Load(ctx context.Context) error

	// Extract returns the raw description spans found in chapter.
	Extract(ctx context.Context, chapter *model.Chapter) ([]RawDescription, error)
}

// Weighted is implemented by processors the ensemble strategy needs a
// voting weight and confidence threshold from (spec.md §4.5).
type Weighted interface {
	Weight() float64
	Threshold() float64
	PriorityRank() int
}

// Config is one processor's config-driven tunables, read from
// internal/config.Config.Processors (by name) or the runtime-mutable
// internal/config.Store (for hot-reloadable weight/threshold changes).
type Config struct {
	Type         string
	Enabled      bool
	Weight       float64
	Threshold    float64
	PriorityRank int
	APIKey       string
	Model        string
}

// defaultModelTTL mirrors spec.md §6's nlp_model_ttl_seconds default.
// Nothing reads it: the registry does not evict idle processors.
const defaultModelTTL = 1800 * time.Second
