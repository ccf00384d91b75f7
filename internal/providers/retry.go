package providers

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// HTTPError is a non-2xx response from a provider API.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // from the Retry-After header, zero if absent
}

func (e *HTTPError) Error() string {
	return "http " + strconv.Itoa(e.Status) + ": " + e.Body
}

// retryable reports whether the error is worth retrying: rate limits,
// server errors, and transport-level failures. Client errors are not.
func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusTooManyRequests || he.Status >= 500
	}
	// Network errors and timeouts surface as plain wrapped errors.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryConfig controls RetryDo's backoff schedule.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the standard schedule: 3 attempts with
// exponential backoff starting at 1s, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// RetryDo runs fn until it succeeds, returns a non-retryable error, or
// attempts run out. A Retry-After hint from the server overrides the
// computed backoff.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt, lastErr)
			slog.Debug("retrying provider call", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

func backoffDelay(cfg RetryConfig, attempt int, lastErr error) time.Duration {
	var he *HTTPError
	if errors.As(lastErr, &he) && he.RetryAfter > 0 {
		return he.RetryAfter
	}
	delay := cfg.BaseDelay << (attempt - 1)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	// Jitter up to 25% to avoid synchronized retries.
	return delay + time.Duration(rand.Int63n(int64(delay)/4+1))
}

// ParseRetryAfter parses a Retry-After header value in seconds form.
// Returns zero on anything unparseable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
