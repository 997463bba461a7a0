package waterfall

import (
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/apollo"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/clearbit"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/hunter"
)

const presetTimeout = 90 * time.Second

// Presets returns the named waterfall configurations selectable by
// operation. Defined statically; not persisted as job state.
func Presets() map[domain.Operation]Config {
	return map[domain.Operation]Config{
		// Email finder: Hunter is the only finder installed, so the chain
		// is a single step with stop-on-success.
		domain.OpFindEmail: {
			Operation: domain.OpFindEmail,
			Steps: []Step{
				{ProviderID: hunter.ProviderID, Priority: 1},
			},
			StopOnSuccess: true,
			Timeout:       presetTimeout,
		},

		// Person enrichment: Clearbit first (cheaper, synchronous), Apollo
		// as fallback. Apollo is skipped when Clearbit already produced a
		// position, and its lower weight keeps Clearbit values in place.
		domain.OpEnrichPerson: {
			Operation: domain.OpEnrichPerson,
			Steps: []Step{
				{ProviderID: clearbit.ProviderID, Priority: 1, Weight: 1.0},
				{
					ProviderID: apollo.ProviderID,
					Priority:   2,
					Weight:     0.4,
					SkipConditions: []SkipCondition{
						{Field: "position", Operator: OperatorExists},
					},
				},
			},
			StopOnSuccess:    true,
			QualityThreshold: 70,
			Timeout:          presetTimeout,
		},

		// Company enrichment: Clearbit's firmographics, Apollo filling gaps.
		domain.OpEnrichCompany: {
			Operation: domain.OpEnrichCompany,
			Steps: []Step{
				{ProviderID: clearbit.ProviderID, Priority: 1, Weight: 1.0},
				{
					ProviderID: apollo.ProviderID,
					Priority:   2,
					Weight:     0.4,
					SkipConditions: []SkipCondition{
						{Field: "industry", Operator: OperatorExists},
					},
				},
			},
			StopOnSuccess:    true,
			QualityThreshold: 70,
			Timeout:          presetTimeout,
		},
	}
}

// PresetFor returns the named configuration for an operation.
func PresetFor(op domain.Operation) (Config, bool) {
	cfg, ok := Presets()[op]
	return cfg, ok
}
