package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Retry defaults.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 2 * time.Second
)

// RetryConfig configures retries of backend reads.
type RetryConfig struct {
	MaxAttempts  int           // including the first; default DefaultMaxAttempts
	InitialDelay time.Duration // doubled after every failed attempt
	MaxDelay     time.Duration // ceiling for a single wait
	Jitter       bool          // add up to a quarter of the wait at random

	// RetryIf reports whether err is worth another attempt. Nil retries
	// every error.
	RetryIf func(err error) bool

	// OnRetry, when set, is told about each wait before it starts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry repeats an operation with capped exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry fills in defaults for zero fields.
func NewRetry(config RetryConfig) *Retry {
	config.MaxAttempts = positiveOr(config.MaxAttempts, DefaultMaxAttempts)
	config.InitialDelay = positiveOr(config.InitialDelay, DefaultInitialDelay)
	config.MaxDelay = positiveOr(config.MaxDelay, DefaultMaxDelay)
	if config.RetryIf == nil {
		config.RetryIf = func(error) bool { return true }
	}
	return &Retry{config: config}
}

func positiveOr[N int | time.Duration](v, def N) N {
	if v > 0 {
		return v
	}
	return def
}

// Execute calls op until it succeeds or gives up. It gives up on an error
// RetryIf rejects (returned as is), on ctx ending (ctx.Err()), or when
// attempts run out; the last case wraps both ErrMaxRetriesExceeded and the
// final error unless only one attempt was allowed.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	cfg := r.config
	attempt := 1
	for {
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case !cfg.RetryIf(err):
			return err
		case cfg.MaxAttempts == 1:
			return err
		case attempt >= cfg.MaxAttempts:
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}

		wait := r.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		attempt++
	}
}

// delay is the wait after the given failed attempt.
func (r *Retry) delay(attempt int) time.Duration {
	d := r.config.InitialDelay
	for range attempt - 1 {
		if d >= r.config.MaxDelay {
			break
		}
		d *= 2
	}
	d = min(d, r.config.MaxDelay)
	if r.config.Jitter && d >= 4 {
		// #nosec G404 -- timing variance only.
		d += rand.N(d / 4)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
