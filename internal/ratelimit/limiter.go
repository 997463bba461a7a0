// Package ratelimit provides token-bucket rate limiting for provider calls.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter sized from a provider's rate limit.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// rps: requests per second, burst: maximum burst size.
func New(rps, burst int) *Limiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = rps
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the rate limit allows the operation or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow checks if an operation is allowed without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetLimit updates the rate limit.
func (l *Limiter) SetLimit(rps int) {
	l.limiter.SetLimit(rate.Limit(rps))
}

// SetBurst updates the burst size.
func (l *Limiter) SetBurst(burst int) {
	l.limiter.SetBurst(burst)
}
