// Package provider defines the uniform client contract every enrichment
// data source implements, plus the registry and factory that resolve
// provider ids into authenticated, rate-limited client instances.
package provider

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/cache"
	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
)

// Client is the contract every provider implementation satisfies. A client
// instance holds one authenticated session (bearer token, token bucket) and
// is safe for sequential reuse from one worker, but never shared across
// authentication contexts: one instance per (provider, user).
type Client interface {
	// ID returns the provider identifier.
	ID() string

	// Authenticate resolves the active credential for the acting user and
	// verifies it with a lightweight remote call. Idempotent.
	Authenticate(ctx context.Context, userID string) error

	// ValidateConfig fails when static configuration is unusable.
	// Called once at construction by the factory.
	ValidateConfig() error

	// Execute dispatches an operation. Expected provider failures come back
	// as Response{Success: false}; only programmer errors (unsupported
	// operation) are returned as a Go error.
	Execute(ctx context.Context, op domain.Operation, params domain.Record, opts ExecuteOptions) (*Response, error)
}

// ExecuteOptions carries per-call options.
type ExecuteOptions struct {
	// Timeout bounds the whole operation including async polling.
	// Zero means no extra bound beyond the client's own limits.
	Timeout time.Duration
	// SkipCache bypasses the response cache for this call.
	SkipCache bool
}

// Metadata describes one provider call for auditing and cost accounting.
type Metadata struct {
	Provider       string           `json:"provider"`
	Operation      domain.Operation `json:"operation"`
	CreditsUsed    float64          `json:"credits_used"`
	ResponseTimeMs int64            `json:"response_time_ms"`
	RequestID      string           `json:"request_id"`
	FromCache      bool             `json:"from_cache,omitempty"`
}

// Response is the standard envelope every Execute call returns.
type Response struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    *domain.Error  `json:"error,omitempty"`
	Metadata Metadata       `json:"metadata"`
}

// CredentialStore resolves the active credential for a (provider, user)
// pair. Backed by the encrypted credential repository in production and by
// fakes in tests.
type CredentialStore interface {
	GetActive(ctx context.Context, providerID, userID string) (*domain.Credential, error)
}

// Deps are the collaborator handles passed to every provider constructor.
// Metrics may be nil; instrumentation is skipped when it is.
type Deps struct {
	Credentials CredentialStore
	Cache       *cache.ResponseCache
	Logger      logger.Logger
	Metrics     *metrics.Metrics
}

// Constructor builds a provider client from its catalog config.
type Constructor func(cfg domain.ProviderConfig, deps Deps) (Client, error)
