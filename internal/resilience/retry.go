// Package resilience retries portal HTTP requests with exponential
// backoff. The open-data portal throttles aggressively around release
// days, so transient failures are expected; permanent failures (a 404
// for a renamed dataset, a malformed URL) fail fast instead of burning
// the retry budget.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config controls retry pacing.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// StatusError reports an HTTP request that completed with an
// unexpected status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retryable reports whether the status is worth another attempt.
// Throttling and server-side failures are; client errors are not.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// Transient reports whether an error is worth retrying. Cancellation
// and non-retryable HTTP statuses are permanent; everything else
// (refused connections, resets, per-attempt timeouts) is assumed
// transient. An expired caller deadline is caught by Do's own context
// check, so DeadlineExceeded stays retryable here.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// Do runs fn until it succeeds, hits a permanent error, or exhausts
// the attempt budget. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = applyDefaults(cfg)

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !Transient(lastErr) {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func applyDefaults(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	return cfg
}

func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}
