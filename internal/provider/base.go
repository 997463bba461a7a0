package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/enrichment/internal/cache"
	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/httpclient"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/ratelimit"
)

// Base carries the behavior shared by every provider client: credential
// resolution, per-provider token bucket, response caching, credit
// accounting and the standard response envelope. Concrete clients embed it
// and implement operation dispatch on top.
type Base struct {
	cfg     domain.ProviderConfig
	deps    Deps
	limiter *ratelimit.Limiter
	httpc   *http.Client

	mu     sync.RWMutex
	secret string
}

// NewBase builds the shared provider plumbing from a catalog entry.
func NewBase(cfg domain.ProviderConfig, deps Deps) *Base {
	return &Base{
		cfg:     cfg,
		deps:    deps,
		limiter: ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		httpc:   httpclient.New(httpclient.DefaultTimeout),
	}
}

// Config returns the immutable catalog entry.
func (b *Base) Config() domain.ProviderConfig {
	return b.cfg
}

// HTTPClient returns the shared outbound HTTP client.
func (b *Base) HTTPClient() *http.Client {
	return b.httpc
}

// Logger returns the provider's logger.
func (b *Base) Logger() logger.Logger {
	return b.deps.Logger
}

// ValidateConfig checks the static configuration is usable.
func (b *Base) ValidateConfig() error {
	if b.cfg.BaseURL == "" {
		return domain.NewErrorf(domain.CodeValidation, "provider %s: base_url is not configured", b.cfg.ID)
	}
	return nil
}

// ResolveCredential loads the active credential for the acting user and
// stores its secret for subsequent calls. Safe to call repeatedly.
func (b *Base) ResolveCredential(ctx context.Context, userID string) error {
	cred, err := b.deps.Credentials.GetActive(ctx, b.cfg.ID, userID)
	if err != nil {
		return domain.WrapError(domain.CodeAuthentication,
			"no active credential for "+b.cfg.ID, err).WithProvider(b.cfg.ID)
	}

	b.mu.Lock()
	b.secret = cred.Secret
	b.mu.Unlock()
	return nil
}

// Secret returns the resolved credential secret.
func (b *Base) Secret() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.secret
}

// Handler performs the actual provider call for one operation. Expected
// upstream failures come back as a coded error; the payload is the
// enriched data on success.
type Handler func(ctx context.Context) (map[string]any, *domain.Error)

// Call wraps a handler with rate limiting, optional response caching,
// timing, credit accounting and the standard envelope. It never returns a
// Go error for expected provider failures.
func (b *Base) Call(
	ctx context.Context,
	op domain.Operation,
	params domain.Record,
	opts ExecuteOptions,
	credits float64,
	cacheTTL time.Duration,
	handler Handler,
) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	meta := Metadata{
		Provider:  b.cfg.ID,
		Operation: op,
		RequestID: uuid.NewString(),
	}

	cacheable := cacheTTL > 0 && b.deps.Cache != nil && !opts.SkipCache
	var key string
	if cacheable {
		key = cache.Key(b.cfg.ID, op.String(), params)
		if data, hit := b.deps.Cache.Get(ctx, key); hit {
			meta.FromCache = true
			if b.deps.Metrics != nil {
				b.deps.Metrics.ProviderCacheHits.WithLabelValues(b.cfg.ID, op.String()).Inc()
			}
			return &Response{Success: true, Data: data, Metadata: meta}, nil
		}
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return &Response{
			Success:  false,
			Error:    domain.WrapError(domain.CodeTimeout, "rate limiter wait", err).WithProvider(b.cfg.ID),
			Metadata: meta,
		}, nil
	}

	start := time.Now()
	data, callErr := handler(ctx)
	elapsed := time.Since(start)
	meta.ResponseTimeMs = elapsed.Milliseconds()

	if callErr != nil {
		if callErr.Provider == "" {
			callErr.Provider = b.cfg.ID
		}
		if b.deps.Metrics != nil {
			b.deps.Metrics.RecordProviderCall(b.cfg.ID, op.String(), string(callErr.Code), elapsed)
		}
		b.deps.Logger.Debug("provider call failed",
			logger.String("provider", b.cfg.ID),
			logger.String("operation", op.String()),
			logger.String("code", string(callErr.Code)),
			logger.Int64("response_time_ms", meta.ResponseTimeMs))
		return &Response{Success: false, Error: callErr, Metadata: meta}, nil
	}

	meta.CreditsUsed = credits
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordProviderCall(b.cfg.ID, op.String(), "ok", elapsed)
		b.deps.Metrics.CreditsUsed.WithLabelValues(b.cfg.ID).Add(credits)
	}
	if cacheable {
		b.deps.Cache.Set(ctx, key, data, cacheTTL)
	}

	return &Response{Success: true, Data: data, Metadata: meta}, nil
}

// Unsupported returns the programmer-error for an operation the provider
// does not implement. This is the only path where Execute returns a Go
// error instead of an envelope.
func (b *Base) Unsupported(op domain.Operation) error {
	return domain.NewErrorf(domain.CodeOperationFailed,
		"provider %s does not support operation %s", b.cfg.ID, op).WithProvider(b.cfg.ID)
}
