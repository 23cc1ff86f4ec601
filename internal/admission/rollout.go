package admission

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/fancai/orchestrator/internal/config"
)

// ConfigRollout implements RolloutGate against the original's
// nlp_rollout_config table (mentioned in spec.md §6's table list but
// never elaborated on; see SPEC_FULL.md "SUPPLEMENTED FEATURES"). A
// book/user is deterministically bucketed into [0,100) by hashing its
// id, and admitted iff its bucket falls below the configured
// percentage. Default percentage is 100 (rollout fully open), so this
// gate changes no default behavior until an operator narrows it.
type ConfigRollout struct {
	store         config.Store
	defaultPercent int
}

// NewConfigRollout constructs a ConfigRollout reading percentages from
// store, falling back to defaultPercent when no override is configured.
func NewConfigRollout(store config.Store, defaultPercent int) *ConfigRollout {
	return &ConfigRollout{store: store, defaultPercent: defaultPercent}
}

// Allow reports whether (bookID, userID) falls within the rollout
// percentage. Per-book overrides take precedence over per-user, which
// takes precedence over the global default.
func (r *ConfigRollout) Allow(ctx context.Context, bookID, userID string) (bool, error) {
	percent := r.defaultPercent

	if entry, err := r.store.Get(ctx, "rollout.book."+bookID); err == nil && entry != nil {
		if p, ok := entry.Value.(float64); ok {
			percent = int(p)
		}
	}
	if percent == r.defaultPercent {
		if entry, err := r.store.Get(ctx, "rollout.user."+userID); err == nil && entry != nil {
			if p, ok := entry.Value.(float64); ok {
				percent = int(p)
			}
		}
	}
	if entry, err := r.store.Get(ctx, "rollout.default_percent"); err == nil && entry != nil {
		if p, ok := entry.Value.(float64); ok && percent == r.defaultPercent {
			percent = int(p)
		}
	}

	if percent >= 100 {
		return true, nil
	}
	if percent <= 0 {
		return false, nil
	}

	bucket := bucketOf(bookID + ":" + userID)
	return bucket < percent, nil
}

// bucketOf deterministically maps an identifier to [0, 100).
func bucketOf(id string) int {
	sum := sha256.Sum256([]byte(id))
	v := binary.BigEndian.Uint32(sum[:4])
	return int(v % 100)
}
