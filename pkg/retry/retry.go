// Package retry provides a bounded exponential-backoff retry helper used for
// read-after-write verification against eventually consistent stores.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Timer is re-exported so callers can inject a fake timer in tests and run
// retry loops without sleeping.
type Timer = backoff.Timer

// Defaults give the capped-doubling sequence 1s,2s,4s,8s,16s,16s,... with at
// most 12 attempts (11 waits) per call.
const (
	DefaultMaxAttempts  = 12
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 16 * time.Second
	DefaultMultiplier   = 2.0
)

type config struct {
	maxAttempts  uint64
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	timer        Timer
	notify       backoff.Notify
}

// Option customizes a single Do call.
type Option func(*config)

// WithMaxAttempts bounds the total number of operation invocations.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = uint64(n)
		}
	}
}

// WithInitialDelay sets the first wait between attempts.
func WithInitialDelay(d time.Duration) Option {
	return func(c *config) { c.initialDelay = d }
}

// WithMaxDelay caps the wait between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) { c.maxDelay = d }
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(c *config) { c.multiplier = m }
}

// WithTimer injects the timer used for waits. Tests pass a timer that fires
// immediately.
func WithTimer(t Timer) Option {
	return func(c *config) { c.timer = t }
}

// WithNotify registers a callback invoked after each failed attempt with the
// error and the upcoming wait.
func WithNotify(fn func(err error, next time.Duration)) Option {
	return func(c *config) { c.notify = backoff.Notify(fn) }
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context is
// cancelled, or the attempt limit is reached. The waits between attempts
// follow a deterministic capped-doubling schedule (no jitter, so verification
// timing is reproducible in logs and tests).
func Do(ctx context.Context, op func() error, opts ...Option) error {
	cfg := config{
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		multiplier:   DefaultMultiplier,
	}
	for _, o := range opts {
		o(&cfg)
	}

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.initialDelay,
		RandomizationFactor: 0,
		Multiplier:          cfg.multiplier,
		MaxInterval:         cfg.maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()

	// maxAttempts counts invocations of op, backoff counts retries.
	b := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.maxAttempts-1), ctx)
	if cfg.timer != nil {
		return backoff.RetryNotifyWithTimer(op, b, cfg.notify, cfg.timer)
	}
	return backoff.RetryNotify(op, b, cfg.notify)
}
