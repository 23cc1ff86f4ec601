// Package admission implements the admission and rate-control gate of
// spec.md §4.1: given (book_id, user_id) it decides admit/defer/reject,
// and on admit installs a cooldown mark and a slot holder. All gates are
// evaluated against the shared coordination store for cross-process
// atomicity (internal/storage/coordstore).
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/storage/coordstore"
)

// Decision is the outcome of can_start.
type Decision string

const (
	DecisionAdmit  Decision = "admit"
	DecisionDefer  Decision = "defer"
	DecisionReject Decision = "reject"
)

// Reason is a short structured code explaining a Decision.
type Reason string

const (
	ReasonNone                    Reason = ""
	ReasonCooldown                Reason = "cooldown"
	ReasonGlobalConcurrency       Reason = "global_concurrency"
	ReasonUserQuota                Reason = "user_quota"
	ReasonSystemResources          Reason = "system_resources"
	ReasonPolicy                  Reason = "policy"
	ReasonRollout                 Reason = "rollout"
	ReasonCoordinationUnavailable Reason = "coordination_unavailable"
)

// ResourceSample is a live system-metrics snapshot consulted by gate 4.
// The caller (cmd/orchestrator) is responsible for sampling the host;
// this package only evaluates thresholds, matching the teacher's
// pattern of keeping OS-level sampling out of business logic.
type ResourceSample struct {
	MemoryPercent    float64
	AvailableMemoryMB int
	CPUPercent       float64
}

// PolicyChecker evaluates the hard-policy gate (5): e.g. a user's
// subscription tier forbidding this book size. Returns a reject reason,
// or "" if the policy allows the job.
type PolicyChecker func(ctx context.Context, bookID, userID string) (rejected bool, reason string)

// RolloutGate consults the staged-rollout percentage (SPEC_FULL.md
// "SUPPLEMENTED FEATURES"), implemented in rollout.go.
type RolloutGate interface {
	Allow(ctx context.Context, bookID, userID string) (bool, error)
}

// Config holds the tunables named in spec.md §6.
type Config struct {
	MaxConcurrentGlobal  int
	MaxConcurrentPerUser int
	CooldownPerBook      time.Duration
	MaxMemoryPercent     float64
	MaxCPUPercent        float64
	MinFreeMemoryMB      int
	AgePromotionInterval time.Duration
}

// Gate is the Admission & Rate Control component.
type Gate struct {
	store   coordstore.Store
	cfg     Config
	sample  func(ctx context.Context) (ResourceSample, error)
	policy  PolicyChecker
	rollout RolloutGate
	logger  *slog.Logger
}

// New constructs a Gate. sample is a callback returning a live resource
// snapshot; policy and rollout may be nil (no-op, i.e. always allow).
func New(store coordstore.Store, cfg Config, sample func(ctx context.Context) (ResourceSample, error), policy PolicyChecker, rollout RolloutGate, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, cfg: cfg, sample: sample, policy: policy, rollout: rollout, logger: logger}
}

const (
	keyActiveTasks        = "parsing:active_tasks"
	keyStats              = "parsing:stats"
)

func keyUserTasks(userID string) string { return fmt.Sprintf("parsing:user_tasks:%s", userID) }
func keyCooldown(bookID string) string  { return fmt.Sprintf("parsing:cooldown:%s", bookID) }

// CanStart evaluates gates 1-5 in order; the first failing gate
// determines the outcome. Coordination-store unavailability is
// fail-closed: defer with reason coordination_unavailable, never
// fail-open (spec.md §4.1).
func (g *Gate) CanStart(ctx context.Context, bookID, userID string) (Decision, Reason, error) {
	if err := g.store.Ping(ctx); err != nil {
		return DecisionDefer, ReasonCoordinationUnavailable, apperr.CoordinationUnavailable(err, "coordination store unavailable")
	}

	// Gate 1: per-book cooldown.
	ttl, err := g.store.TTL(ctx, keyCooldown(bookID))
	if err != nil {
		return DecisionDefer, ReasonCoordinationUnavailable, apperr.CoordinationUnavailable(err, "cooldown check failed")
	}
	if ttl > 0 {
		return DecisionDefer, ReasonCooldown, nil
	}

	// Gate 2: global concurrency.
	globalActive, err := g.store.SCard(ctx, keyActiveTasks)
	if err != nil {
		return DecisionDefer, ReasonCoordinationUnavailable, apperr.CoordinationUnavailable(err, "global concurrency check failed")
	}
	if int(globalActive) >= g.cfg.MaxConcurrentGlobal {
		return DecisionDefer, ReasonGlobalConcurrency, nil
	}

	// Gate 3: per-user concurrency.
	userActive, err := g.store.SCard(ctx, keyUserTasks(userID))
	if err != nil {
		return DecisionDefer, ReasonCoordinationUnavailable, apperr.CoordinationUnavailable(err, "user concurrency check failed")
	}
	if int(userActive) >= g.cfg.MaxConcurrentPerUser {
		return DecisionDefer, ReasonUserQuota, nil
	}

	// Gate 4: system resources.
	if g.sample != nil {
		sample, err := g.sample(ctx)
		if err != nil {
			return DecisionDefer, ReasonCoordinationUnavailable, apperr.TransientIO(err, "resource sampling failed")
		}
		if sample.MemoryPercent > g.cfg.MaxMemoryPercent ||
			sample.AvailableMemoryMB < g.cfg.MinFreeMemoryMB ||
			sample.CPUPercent > g.cfg.MaxCPUPercent {
			return DecisionDefer, ReasonSystemResources, nil
		}
	}

	// Gate 5: hard policy.
	if g.policy != nil {
		if rejected, reason := g.policy(ctx, bookID, userID); rejected {
			return DecisionReject, Reason(reason), nil
		}
	}
	if g.rollout != nil {
		allowed, err := g.rollout.Allow(ctx, bookID, userID)
		if err != nil {
			return DecisionDefer, ReasonCoordinationUnavailable, apperr.CoordinationUnavailable(err, "rollout check failed")
		}
		if !allowed {
			return DecisionReject, ReasonRollout, nil
		}
	}

	return DecisionAdmit, ReasonNone, nil
}

// AcquireSlot is atomic in spirit: it re-checks CanStart and, iff it
// still admits, installs the cooldown mark and active-task membership.
// The check and the installs are separate store calls, and no per-book
// advisory lock is taken here or by any caller, so two processes can
// both pass the check for the same book.
func (g *Gate) AcquireSlot(ctx context.Context, bookID, userID, jobID string) (bool, error) {
	decision, _, err := g.CanStart(ctx, bookID, userID)
	if err != nil {
		return false, err
	}
	if decision != DecisionAdmit {
		return false, nil
	}

	if err := g.store.SAdd(ctx, keyActiveTasks, jobID); err != nil {
		return false, apperr.CoordinationUnavailable(err, "failed to record active task")
	}
	if err := g.store.SAdd(ctx, keyUserTasks(userID), jobID); err != nil {
		return false, apperr.CoordinationUnavailable(err, "failed to record user task")
	}
	if err := g.store.SetEX(ctx, keyCooldown(bookID), jobID, g.cfg.CooldownPerBook); err != nil {
		return false, apperr.CoordinationUnavailable(err, "failed to install cooldown")
	}
	return true, nil
}

// ReleaseSlot is idempotent: removing a member from a set that does not
// contain it is a no-op in Redis (and in MemoryStore).
func (g *Gate) ReleaseSlot(ctx context.Context, bookID, userID, jobID string) error {
	if err := g.store.SRem(ctx, keyActiveTasks, jobID); err != nil {
		return apperr.CoordinationUnavailable(err, "failed to release active task")
	}
	if err := g.store.SRem(ctx, keyUserTasks(userID), jobID); err != nil {
		return apperr.CoordinationUnavailable(err, "failed to release user task")
	}
	// Cooldown mark is intentionally left in place until its TTL expires:
	// it exists to prevent immediate re-processing of the same book, not
	// to track the job's lifetime.
	return nil
}

// DerivePriority computes the priority integer from subscription tier
// and time spent queued; lower integer = higher priority. Age-based
// promotion decrements the base priority by 1 for every
// AgePromotionInterval elapsed, floored at 1 (spec.md §4.1
// "User-priority derivation").
func (g *Gate) DerivePriority(subscriptionTier int, queuedFor time.Duration) int {
	base := subscriptionTier
	if base < 1 {
		base = 1
	}
	if base > 10 {
		base = 10
	}
	if g.cfg.AgePromotionInterval <= 0 {
		return base
	}
	promotions := int(queuedFor / g.cfg.AgePromotionInterval)
	base -= promotions
	if base < 1 {
		base = 1
	}
	return base
}

// Stats is a snapshot of active/queued counts.
type Stats struct {
	ActiveGlobal int64
	QueuedTotal  int64
}

// Stats returns a snapshot of admission state. It fills only
// ActiveGlobal, from the cardinality of the active-task set; QueuedTotal
// is left zero and the parsing:stats key is not read.
func (g *Gate) Stats(ctx context.Context) (Stats, error) {
	active, err := g.store.SCard(ctx, keyActiveTasks)
	if err != nil {
		return Stats{}, apperr.CoordinationUnavailable(err, "stats: active tasks")
	}
	return Stats{ActiveGlobal: active}, nil
}

// NewJobID generates a fresh job identifier.
func NewJobID() string { return uuid.New().String() }
