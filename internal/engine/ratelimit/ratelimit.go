// Package ratelimit wraps a token bucket shared by the pipeline and
// batch executors so every abstract-executor invocation draws from one
// external API budget. The bucket is golang.org/x/time/rate underneath:
// refill is computed lazily on access, no background timer runs, and
// acquire-and-decrement is atomic with respect to concurrent acquires.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with capacity maxTokens, refilled by
// refillTokens every refillInterval. Construct one per external quota
// and share it by reference; tests inject isolated instances.
type Limiter struct {
	limiter   *rate.Limiter
	maxTokens int
}

// New creates a limiter. maxTokens < 1 is clamped to 1; a
// non-positive refill configuration falls back to one token per second.
func New(maxTokens int, refillTokens float64, refillInterval time.Duration) *Limiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	perSecond := 1.0
	if refillTokens > 0 && refillInterval > 0 {
		perSecond = refillTokens / refillInterval.Seconds()
	}
	return &Limiter{
		limiter:   rate.NewLimiter(rate.Limit(perSecond), maxTokens),
		maxTokens: maxTokens,
	}
}

// TryAcquire takes one token without blocking.
func (l *Limiter) TryAcquire() bool {
	return l.limiter.Allow()
}

// Acquire blocks until a token is available, the timeout elapses, or
// ctx is done. It reports whether a token was obtained and never sleeps
// past the caller's budget.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.limiter.Wait(ctx) == nil
}

// AcquireN reserves n tokens all-or-nothing. Requests larger than the
// bucket capacity are rejected outright.
func (l *Limiter) AcquireN(ctx context.Context, n int, timeout time.Duration) error {
	if n < 1 {
		return fmt.Errorf("token count must be >= 1, got %d", n)
	}
	if n > l.maxTokens {
		return fmt.Errorf("cannot acquire %d tokens: bucket capacity is %d", n, l.maxTokens)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := l.limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("acquire %d tokens: %w", n, err)
	}
	return nil
}

// Available returns the number of whole tokens currently in the bucket.
func (l *Limiter) Available() int {
	tokens := int(math.Floor(l.limiter.Tokens()))
	if tokens < 0 {
		return 0
	}
	if tokens > l.maxTokens {
		return l.maxTokens
	}
	return tokens
}

// MaxTokens returns the bucket capacity.
func (l *Limiter) MaxTokens() int {
	return l.maxTokens
}

// WaitTime reports how long until the next token is guaranteed, so
// callers can sleep instead of busy-polling. Zero means a token is
// available now.
func (l *Limiter) WaitTime() time.Duration {
	reservation := l.limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return delay
}

// State is a point-in-time snapshot reported on batch responses.
type State struct {
	// TokensRemaining is the number of whole tokens left in the bucket.
	TokensRemaining int `json:"tokens_remaining"`
}

// State snapshots the limiter for observability.
func (l *Limiter) State() State {
	return State{TokensRemaining: l.Available()}
}

// Backoff returns min(base<<attempt, max) plus 0-25% random jitter,
// used to space retries of failed batch items.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	return delay + jitter
}
