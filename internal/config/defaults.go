package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default runtime-mutable configuration
// entries. These are seeded into the Store on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Processor registry
		// ===================
		{
			Key:         "processors.keyword.enabled",
			Value:       true,
			Description: "Whether the keyword-heuristic processor is enabled",
		},
		{
			Key:         "processors.keyword.weight",
			Value:       0.6,
			Description: "Ensemble vote weight for the keyword processor",
		},
		{
			Key:         "processors.keyword.threshold",
			Value:       0.3,
			Description: "Minimum confidence the keyword processor must emit to be counted",
		},
		{
			Key:         "processors.keyword.priority_rank",
			Value:       2,
			Description: "Rank used by the single strategy to pick a fallback processor",
		},
		{
			Key:         "processors.llm.enabled",
			Value:       true,
			Description: "Whether the LLM-backed processor is enabled",
		},
		{
			Key:         "processors.llm.weight",
			Value:       1.0,
			Description: "Ensemble vote weight for the LLM processor",
		},
		{
			Key:         "processors.llm.threshold",
			Value:       0.3,
			Description: "Minimum confidence the LLM processor must emit to be counted",
		},
		{
			Key:         "processors.llm.priority_rank",
			Value:       1,
			Description: "Rank used by the single strategy; highest rank wins",
		},
		{
			Key:         "processors.llm.model",
			Value:       "gpt-4o-mini",
			Description: "Model name used for structured description extraction",
		},
		{
			Key:         "processors.llm.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "LLM processor API key (uses environment variable)",
		},

		// ===================
		// Pipeline defaults
		// ===================
		{
			Key:         "pipeline.processing_mode",
			Value:       "adaptive",
			Description: "Default strategy: single, parallel, sequential, ensemble, or adaptive",
		},
		{
			Key:         "pipeline.max_parallel_processors",
			Value:       3,
			Description: "Bound on concurrent processor fan-out for parallel/ensemble",
		},
		{
			Key:         "pipeline.consensus_threshold",
			Value:       0.5,
			Description: "Fraction of summed processor weight an ensemble cluster must reach to survive",
		},
		{
			Key:         "pipeline.image_priority_threshold",
			Value:       0.65,
			Description: "Minimum priority_score to trigger an image-generation request",
		},
		{
			Key:         "pipeline.skip_service_pages",
			Value:       true,
			Description: "Whether chapters flagged is_service_page are skipped entirely",
		},

		// ===================
		// Rollout
		// ===================
		{
			Key:         "rollout.default_percent",
			Value:       100,
			Description: "Default staged-rollout percentage gating admission (100 = no restriction)",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
