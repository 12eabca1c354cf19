// Package retry runs an operation again after transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Config bounds the attempts.
type Config struct {
	MaxAttempts    int           // total attempts including the first (default: 3)
	InitialBackoff time.Duration // delay before the second attempt (default: 1s)
	MaxBackoff     time.Duration // cap for exponential and server-requested delays (default: 10s)
	// Retryable decides whether an error is transient. Defaults to IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do calls fn until it succeeds, returns a permanent error, runs out of
// attempts or ctx is done. The last error is wrapped when attempts run out.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.Retryable(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		wait := backoffFor(err, attempt, cfg.InitialBackoff, cfg.MaxBackoff)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if cfg.MaxAttempts > 1 && cfg.Retryable(lastErr) {
		return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
	}
	return lastErr
}

type retryableError interface {
	IsRetryable() bool
}

type retryAfterError interface {
	RetryAfter() time.Duration
}

// IsRetryable reports whether err looks transient. Errors that implement
// IsRetryable() decide for themselves.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re retryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"401", "403", "400", "404", "unauthorized", "forbidden", "not found"} {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"eof",
		"429",
		"too many requests",
		"rate limit",
		"bad gateway",
		"service unavailable",
		"internal server error",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// backoffFor honours a server-requested delay, otherwise doubles the
// initial delay per attempt. Both are capped at max.
func backoffFor(err error, attempt int, initial, max time.Duration) time.Duration {
	var ra retryAfterError
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return min(d, max)
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * initial
	return min(backoff, max)
}
