// Package waterfall orchestrates prioritized multi-provider fallback: steps
// are tried in priority order, results merged field-by-field, and cost is
// bounded via skip-conditions and early stopping.
package waterfall

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

// Operator is a skip-condition comparison operator.
type Operator string

const (
	OperatorExists    Operator = "exists"
	OperatorEquals    Operator = "equals"
	OperatorNotEquals Operator = "not_equals"
)

// SkipCondition bypasses a step when the accumulated data already
// satisfies the criterion.
type SkipCondition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Matches evaluates the condition against the accumulated merged data,
// not the original call params.
func (c SkipCondition) Matches(data map[string]any) bool {
	current, present := data[c.Field]
	switch c.Operator {
	case OperatorExists:
		return present && !isEmpty(current)
	case OperatorEquals:
		// DeepEqual: provider payloads can put maps and slices here, which
		// panic under ==.
		return present && reflect.DeepEqual(current, c.Value)
	case OperatorNotEquals:
		return present && !reflect.DeepEqual(current, c.Value)
	default:
		return false
	}
}

// Step is one provider attempt in the chain.
type Step struct {
	ProviderID     string          `json:"provider_id"`
	Priority       int             `json:"priority"`
	Weight         float64         `json:"weight,omitempty"`
	SkipConditions []SkipCondition `json:"skip_conditions,omitempty"`
}

// QualityFunc scores merged data 0..100 for the early-stopping decision.
// Pluggable because field-presence ratio is not the only sensible notion of
// completeness.
type QualityFunc func(data map[string]any) float64

// Config defines one waterfall: an operation and its ordered fallback chain.
type Config struct {
	Operation        domain.Operation
	Steps            []Step
	StopOnSuccess    bool
	QualityThreshold float64
	Timeout          time.Duration
	Quality          QualityFunc
}

// Attempt is the audit record of one executed step. Skipped steps produce
// no attempt.
type Attempt struct {
	ProviderID  string        `json:"provider_id"`
	Success     bool          `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Error       *domain.Error `json:"error,omitempty"`
	CreditsUsed float64       `json:"credits_used"`
	Duration    time.Duration `json:"duration"`
}

// Result is the outcome of a full waterfall run.
type Result struct {
	Success       bool           `json:"success"`
	Data          map[string]any `json:"data,omitempty"`
	ProvidersUsed []string       `json:"providers_used"`
	CreditsUsed   float64        `json:"credits_used"`
	Duration      time.Duration  `json:"duration"`
	Attempts      []Attempt      `json:"attempts"`
}

// ProviderResolver resolves provider ids into authenticated clients.
// Satisfied by the provider factory.
type ProviderResolver interface {
	GetProvider(ctx context.Context, providerID, userID string) (provider.Client, error)
}

// Orchestrator runs waterfall configurations against whatever providers are
// installed; it has no knowledge of concrete implementations.
type Orchestrator struct {
	resolver ProviderResolver
	logger   logger.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(resolver ProviderResolver, log logger.Logger) *Orchestrator {
	return &Orchestrator{resolver: resolver, logger: log}
}

// Run executes the waterfall for one record. A single provider failure
// never aborts the chain; the run fails only when no step produced data.
func (o *Orchestrator) Run(ctx context.Context, cfg Config, userID string, params domain.Record) (*Result, error) {
	steps := make([]Step, len(cfg.Steps))
	copy(steps, cfg.Steps)
	// Stable: ties keep original list order.
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Priority < steps[j].Priority })

	quality := cfg.Quality
	if quality == nil {
		quality = FieldCompleteness
	}

	result := &Result{
		ProvidersUsed: make([]string, 0, len(steps)),
		Attempts:      make([]Attempt, 0, len(steps)),
	}
	start := time.Now()
	var merged map[string]any

	for _, step := range steps {
		if o.shouldSkip(step, merged) {
			o.logger.Debug("waterfall step skipped",
				logger.String("provider", step.ProviderID),
				logger.String("operation", cfg.Operation.String()))
			continue
		}

		attempt := o.runStep(ctx, cfg, step, userID, params)
		result.Attempts = append(result.Attempts, attempt)
		result.CreditsUsed += attempt.CreditsUsed

		if !attempt.Success {
			o.logger.Warn("waterfall step failed, falling through",
				logger.String("provider", step.ProviderID),
				logger.String("operation", cfg.Operation.String()),
				logger.Error(attempt.Error))
			continue
		}

		merged = Merge(merged, attempt.Data, step.Weight)
		result.ProvidersUsed = append(result.ProvidersUsed, step.ProviderID)

		if cfg.StopOnSuccess {
			if cfg.QualityThreshold <= 0 || quality(merged) >= cfg.QualityThreshold {
				break
			}
		}
	}

	result.Data = merged
	result.Success = merged != nil
	result.Duration = time.Since(start)
	return result, nil
}

func (o *Orchestrator) shouldSkip(step Step, merged map[string]any) bool {
	for _, cond := range step.SkipConditions {
		if cond.Matches(merged) {
			return true
		}
	}
	return false
}

// runStep resolves and executes one provider. Resolution failures and
// provider-level errors are folded into a failed attempt.
func (o *Orchestrator) runStep(ctx context.Context, cfg Config, step Step, userID string, params domain.Record) Attempt {
	attempt := Attempt{ProviderID: step.ProviderID}
	start := time.Now()
	defer func() { attempt.Duration = time.Since(start) }()

	client, err := o.resolver.GetProvider(ctx, step.ProviderID, userID)
	if err != nil {
		attempt.Error = domain.AsError(err)
		return attempt
	}

	resp, err := client.Execute(ctx, cfg.Operation, params, provider.ExecuteOptions{Timeout: cfg.Timeout})
	if err != nil {
		attempt.Error = domain.AsError(err)
		return attempt
	}

	attempt.CreditsUsed = resp.Metadata.CreditsUsed
	if !resp.Success {
		attempt.Error = resp.Error
		return attempt
	}

	attempt.Success = true
	attempt.Data = resp.Data
	return attempt
}
