// Package retry provides the single retry policy used around page fetches:
// exponential backoff with jitter, a sleep ceiling, and a capped attempt
// count. Only errors accepted by the policy's filter are retried; everything
// else, including context cancellation, propagates immediately.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for the canonical policy.
const (
	DefaultMaxAttempts = 3
	DefaultBase        = 2.0
	DefaultJitter      = 0.3
	DefaultCap         = 30 * time.Second
)

// Policy wraps a fallible operation with exponential backoff. Sleeps follow
// base^attempt seconds scaled by uniform(1-jitter, 1+jitter), capped at Cap.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Base is both the first sleep in seconds and the growth factor.
	Base float64

	// Jitter is the relative spread applied to each sleep.
	Jitter float64

	// Cap bounds any single sleep.
	Cap time.Duration

	// RetryIf decides whether an error is worth another attempt. Nil retries
	// every error.
	RetryIf func(error) bool

	Logger *slog.Logger
}

// NewPolicy returns the canonical policy with the given attempt budget.
func NewPolicy(maxAttempts int, logger *slog.Logger) Policy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return Policy{
		MaxAttempts: maxAttempts,
		Base:        DefaultBase,
		Jitter:      DefaultJitter,
		Cap:         DefaultCap,
		Logger:      logger,
	}
}

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(p.Base * float64(time.Second))
	b.Multiplier = p.Base
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = p.Cap
	b.MaxElapsedTime = 0 // attempts are the only budget
	b.Reset()

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"next_try_in", next,
				"error", err,
			)
		}
	}

	err := backoff.RetryNotify(
		wrapped,
		backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(maxAttempts-1)),
		notify,
	)
	if err != nil && p.Logger != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error("all attempts failed", "attempts", attempt, "error", err)
	}
	return err
}
