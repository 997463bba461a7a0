// Package poll provides a bounded submit-then-poll combinator for providers
// whose enrichment runs asynchronously on the remote side.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

const (
	// singleMaxAttempts bounds polling for single-record enrichments.
	singleMaxAttempts = 30
	// singleInterval is the fixed sleep between single-record polls.
	singleInterval = 1 * time.Second
	// bulkMaxAttempts bounds polling for bulk submissions.
	bulkMaxAttempts = 60
	// bulkInterval is the fixed sleep between bulk polls.
	bulkInterval = 2 * time.Second
)

// Status is the remote state reported by one poll.
type Status int

const (
	// StatusPending means the remote operation has not finished; keep polling.
	StatusPending Status = iota
	// StatusCompleted terminates the loop successfully.
	StatusCompleted
	// StatusFailed terminates the loop with a provider-side failure.
	StatusFailed
)

// CheckFunc performs one poll against the remote API. It returns the remote
// status and, once completed, the result payload. A non-nil error aborts
// the loop (transport failure, not a remote "still running").
type CheckFunc func(ctx context.Context) (Status, map[string]any, error)

// Config bounds a polling loop.
type Config struct {
	MaxAttempts int
	Interval    time.Duration
}

// SingleRecord returns the polling budget for person/company enrichments.
func SingleRecord() Config {
	return Config{MaxAttempts: singleMaxAttempts, Interval: singleInterval}
}

// Bulk returns the polling budget for true bulk submissions.
func Bulk() Config {
	return Config{MaxAttempts: bulkMaxAttempts, Interval: bulkInterval}
}

// Until polls check at a fixed interval until it reports a terminal status
// or the attempt budget is exhausted. Exhausting the budget yields a
// dedicated Timeout error, distinct from a provider-side failure.
func Until(ctx context.Context, check CheckFunc, cfg Config) (map[string]any, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = singleMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = singleInterval
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		status, data, err := check(ctx)
		if err != nil {
			return nil, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}

		switch status {
		case StatusCompleted:
			return data, nil
		case StatusFailed:
			return nil, domain.NewError(domain.CodeProvider, "remote enrichment failed")
		case StatusPending:
			// keep polling
		}

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, domain.WrapError(domain.CodeTimeout, "polling cancelled", ctx.Err())
			case <-time.After(cfg.Interval):
			}
		}
	}

	return nil, domain.NewErrorf(domain.CodeTimeout,
		"enrichment did not complete after %d polls", cfg.MaxAttempts)
}
