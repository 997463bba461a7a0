// Package catalog provides an immutable lookup of provider configurations.
package catalog

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// Catalog is an immutable provider catalog built once at startup. Lookups
// are safe for concurrent use.
type Catalog struct {
	byID map[string]domain.ProviderConfig
	ids  []string
}

// New builds a catalog from the configured providers. Duplicate ids are
// rejected so a typo in the config cannot silently shadow a provider.
func New(providers []domain.ProviderConfig) (*Catalog, error) {
	byID := make(map[string]domain.ProviderConfig, len(providers))
	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q in catalog", p.ID)
		}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	return &Catalog{byID: byID, ids: ids}, nil
}

// Get returns the config for a provider id. Inactive providers are treated
// as not found so the factory never constructs clients for them.
func (c *Catalog) Get(providerID string) (domain.ProviderConfig, error) {
	cfg, ok := c.byID[providerID]
	if !ok || !cfg.Active {
		return domain.ProviderConfig{}, fmt.Errorf("provider %q: %w", providerID, domain.ErrNotFound)
	}
	return cfg, nil
}

// IDs returns all catalog provider ids in configuration order, including
// inactive ones.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.byID)
}
