// Package retry runs an operation repeatedly with exponential backoff
// until it succeeds, a non-retryable error occurs, or the attempt budget
// runs out.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded wraps the last error once the budget is spent.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled reports cancellation between or during attempts.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// transientPatterns are error-text fragments treated as retryable by
// DefaultIsRetryable. Matching on text is crude but covers the wrapped
// net errors that reach this layer.
var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"i/o timeout",
}

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts counts the first try too.
	MaxAttempts int
	// InitialDelay seeds the backoff; each retry doubles it (Multiplier).
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier is the backoff growth factor.
	Multiplier float64
	// IsRetryable decides whether an error is worth another attempt.
	IsRetryable func(error) bool
}

// DefaultConfig is the general-purpose policy: 3 attempts from 100ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  DefaultIsRetryable,
	}
}

// TransportConfig is the queue-publication policy: 3 attempts from 2s,
// every error retried because the transport is a single Redis hop.
func TransportConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  func(error) bool { return true },
	}
}

// DefaultIsRetryable treats network-shaped errors as transient.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// delay returns the backoff before retry number attempt (1-based).
func (c Config) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do runs fn under the given policy. The error from the final attempt is
// wrapped in ErrMaxAttemptsExceeded; a non-retryable error is returned
// as-is immediately.
func Do(ctx context.Context, config Config, fn func() error) error {
	config = config.normalized()

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !config.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(config.delay(attempt)):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}
