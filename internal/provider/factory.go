package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/north-cloud/enrichment/internal/catalog"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
)

// CredentialEvents is implemented by credential stores that emit change
// notifications on add/rotate/deactivate/delete. The factory subscribes so
// no caller has to remember to invalidate by hand.
type CredentialEvents interface {
	OnChange(func(providerID, userID string))
}

// Factory resolves (provider, user) pairs into authenticated client
// instances, caching them until the underlying credential changes. The
// cache is the central shared mutable resource of the pipeline: reads are
// lock-cheap, construction on miss is serialized per factory, and
// invalidation is per-key.
type Factory struct {
	registry *Registry
	catalog  *catalog.Catalog
	deps     Deps
	logger   logger.Logger

	mu    sync.RWMutex
	cache map[cacheKey]Client
}

type cacheKey struct {
	providerID string
	userID     string
}

// NewFactory creates a provider factory.
func NewFactory(registry *Registry, cat *catalog.Catalog, deps Deps, log logger.Logger) *Factory {
	return &Factory{
		registry: registry,
		catalog:  cat,
		deps:     deps,
		logger:   log,
		cache:    make(map[cacheKey]Client),
	}
}

// WatchCredentials subscribes the factory to credential change events so
// the next GetProvider call after a rotation re-authenticates instead of
// serving a stale session.
func (f *Factory) WatchCredentials(events CredentialEvents) {
	events.OnChange(func(providerID, userID string) {
		f.Invalidate(providerID, userID)
	})
}

// GetProvider returns an authenticated client for (providerID, userID),
// constructing and caching one on miss.
func (f *Factory) GetProvider(ctx context.Context, providerID, userID string) (Client, error) {
	cfg, err := f.catalog.Get(providerID)
	if err != nil {
		return nil, err
	}

	key := cacheKey{providerID: providerID, userID: userID}

	f.mu.RLock()
	cached, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ctor, ok := f.registry.Constructor(providerID)
	if !ok {
		return nil, fmt.Errorf("provider %q has no registered implementation", providerID)
	}

	client, err := ctor(cfg, f.deps)
	if err != nil {
		return nil, fmt.Errorf("construct provider %s: %w", providerID, err)
	}
	if err := client.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("validate provider %s config: %w", providerID, err)
	}
	if err := client.Authenticate(ctx, userID); err != nil {
		return nil, fmt.Errorf("authenticate provider %s: %w", providerID, err)
	}

	f.mu.Lock()
	// Another worker may have raced us here; keep the first instance so all
	// callers share one session and one token bucket.
	if existing, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return existing, nil
	}
	f.cache[key] = client
	f.mu.Unlock()

	f.logger.Debug("provider client constructed",
		logger.String("provider", providerID),
		logger.String("user_id", userID))

	return client, nil
}

// Invalidate drops the cached instance for one (provider, user) pair.
// Callable from outside the worker pool, e.g. on credential rotation.
func (f *Factory) Invalidate(providerID, userID string) {
	key := cacheKey{providerID: providerID, userID: userID}

	f.mu.Lock()
	_, existed := f.cache[key]
	delete(f.cache, key)
	f.mu.Unlock()

	if existed {
		f.logger.Info("provider client invalidated",
			logger.String("provider", providerID),
			logger.String("user_id", userID))
	}
}

// CachedCount returns the number of live cached client instances.
func (f *Factory) CachedCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}
