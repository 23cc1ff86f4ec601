package jobs

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy implements spec.md §4.3's retry policy: exponential backoff
// with jitter, base 1s, cap 10 min, max attempts 3. Ported from the
// teacher's internal/jobs/worker.go sleepBeforeRetry, widened from a
// provider-call backoff to a chapter-job backoff.
type RetryPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns spec.md §6's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Second, Cap: 10 * time.Minute, MaxAttempts: 3}
}

// Delay computes the backoff duration before attempt (1-indexed: the
// delay before the 2nd attempt is Delay(1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	ceiling := p.Cap
	if ceiling <= 0 {
		ceiling = 10 * time.Minute
	}

	delay := base * time.Duration(1<<uint(attempt))
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	delay += jitter
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

// Sleep waits for the computed backoff delay or until ctx is cancelled.
func (p RetryPolicy) Sleep(ctx context.Context, attempt int) {
	select {
	case <-time.After(p.Delay(attempt)):
	case <-ctx.Done():
	}
}

// Exhausted reports whether attempts has reached MaxAttempts.
func (p RetryPolicy) Exhausted(attempts int) bool {
	max := p.MaxAttempts
	if max <= 0 {
		max = 3
	}
	return attempts >= max
}
