package domain

import "time"

// Operation is an enrichment operation supported by one or more providers.
type Operation string

const (
	OpFindEmail     Operation = "find_email"
	OpVerifyEmail   Operation = "verify_email"
	OpEnrichPerson  Operation = "enrich_person"
	OpEnrichCompany Operation = "enrich_company"
	OpBulkEnrich    Operation = "bulk_enrich"
)

// AllOperations returns every known operation.
func AllOperations() []Operation {
	return []Operation{OpFindEmail, OpVerifyEmail, OpEnrichPerson, OpEnrichCompany, OpBulkEnrich}
}

// IsValid reports whether the operation is a known enum value.
func (o Operation) IsValid() bool {
	switch o {
	case OpFindEmail, OpVerifyEmail, OpEnrichPerson, OpEnrichCompany, OpBulkEnrich:
		return true
	default:
		return false
	}
}

// String returns the operation identifier.
func (o Operation) String() string {
	return string(o)
}

// RateLimit describes a provider's request budget.
type RateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int `yaml:"burst"               json:"burst"`
	DailyQuota        int `yaml:"daily_quota"         json:"daily_quota"`
}

// ProviderConfig is the static catalog entry for one provider. Loaded once
// per client construction and immutable for the lifetime of that instance.
type ProviderConfig struct {
	ID          string         `yaml:"id"          json:"id"`
	NumericID   int            `yaml:"numeric_id"  json:"numeric_id"`
	DisplayName string         `yaml:"name"        json:"name"`
	Category    string         `yaml:"category"    json:"category"`
	BaseURL     string         `yaml:"base_url"    json:"base_url"`
	RateLimit   RateLimit      `yaml:"rate_limit"  json:"rate_limit"`
	Operations  []Operation    `yaml:"operations"  json:"operations"`
	Options     map[string]any `yaml:"options"     json:"options,omitempty"`
	Active      bool           `yaml:"active"      json:"active"`
}

// Supports reports whether the provider advertises the operation.
func (c ProviderConfig) Supports(op Operation) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Credential is an API key for one (provider, user) pair. The credential
// store guarantees at most one active credential per pair; the factory
// relies on that when resolving "the" active key.
type Credential struct {
	ID         string    `db:"id"          json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	UserID     string    `db:"user_id"     json:"user_id"`
	Secret     string    `db:"secret"      json:"-"`
	Active     bool      `db:"active"      json:"active"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}
