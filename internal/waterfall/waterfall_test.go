package waterfall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

// fakeClient returns a canned response and records whether it was called.
type fakeClient struct {
	id       string
	response *provider.Response
	err      error
	calls    int
}

func (f *fakeClient) ID() string                                      { return f.id }
func (f *fakeClient) Authenticate(context.Context, string) error      { return nil }
func (f *fakeClient) ValidateConfig() error                           { return nil }
func (f *fakeClient) Execute(_ context.Context, _ domain.Operation, _ domain.Record, _ provider.ExecuteOptions) (*provider.Response, error) {
	f.calls++
	return f.response, f.err
}

type fakeResolver struct {
	clients map[string]*fakeClient
}

func (f *fakeResolver) GetProvider(_ context.Context, providerID, _ string) (provider.Client, error) {
	c, ok := f.clients[providerID]
	if !ok {
		return nil, domain.NewErrorf(domain.CodeNotFound, "provider %s not installed", providerID)
	}
	return c, nil
}

func success(data map[string]any, credits float64) *provider.Response {
	return &provider.Response{
		Success:  true,
		Data:     data,
		Metadata: provider.Metadata{CreditsUsed: credits},
	}
}

func failure(code domain.ErrorCode, msg string) *provider.Response {
	return &provider.Response{
		Success: false,
		Error:   domain.NewError(code, msg),
	}
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	return log
}

func TestRunStopsAfterFirstSuccess(t *testing.T) {
	first := &fakeClient{id: "alpha", response: success(map[string]any{"email": "a@b.com"}, 1.0)}
	second := &fakeClient{id: "beta", response: success(map[string]any{"email": "x@y.com"}, 1.0)}
	o := NewOrchestrator(&fakeResolver{clients: map[string]*fakeClient{"alpha": first, "beta": second}}, testLogger(t))

	cfg := Config{
		Operation: domain.OpFindEmail,
		Steps: []Step{
			{ProviderID: "beta", Priority: 2},
			{ProviderID: "alpha", Priority: 1},
		},
		StopOnSuccess: true,
	}

	result, err := o.Run(context.Background(), cfg, "user-1", domain.Record{"domain": "b.com"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "a@b.com", result.Data["email"])
	assert.Equal(t, []string{"alpha"}, result.ProvidersUsed)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "lower priority provider must not be called after success")
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 1.0, result.CreditsUsed)
}

func TestRunFallsThroughOnFailure(t *testing.T) {
	first := &fakeClient{id: "alpha", response: failure(domain.CodeProvider, "upstream down")}
	second := &fakeClient{id: "beta", response: success(map[string]any{"email": "x@y.com"}, 0.5)}
	o := NewOrchestrator(&fakeResolver{clients: map[string]*fakeClient{"alpha": first, "beta": second}}, testLogger(t))

	cfg := Config{
		Operation: domain.OpFindEmail,
		Steps: []Step{
			{ProviderID: "alpha", Priority: 1},
			{ProviderID: "beta", Priority: 2},
		},
		StopOnSuccess: true,
	}

	result, err := o.Run(context.Background(), cfg, "user-1", domain.Record{"domain": "y.com"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "x@y.com", result.Data["email"])
	assert.Equal(t, []string{"beta"}, result.ProvidersUsed)
	require.Len(t, result.Attempts, 2)
	assert.False(t, result.Attempts[0].Success)
	assert.NotNil(t, result.Attempts[0].Error)
	assert.True(t, result.Attempts[1].Success)
}

func TestRunSkipConditionProducesNoAttempt(t *testing.T) {
	first := &fakeClient{id: "alpha", response: success(map[string]any{"position": "CTO"}, 1.0)}
	second := &fakeClient{id: "beta", response: success(map[string]any{"position": "VP"}, 1.0)}
	o := NewOrchestrator(&fakeResolver{clients: map[string]*fakeClient{"alpha": first, "beta": second}}, testLogger(t))

	cfg := Config{
		Operation: domain.OpEnrichPerson,
		Steps: []Step{
			{ProviderID: "alpha", Priority: 1, Weight: 1.0},
			{
				ProviderID:     "beta",
				Priority:       2,
				Weight:         0.4,
				SkipConditions: []SkipCondition{{Field: "position", Operator: OperatorExists}},
			},
		},
		// Threshold forces the chain past the first success so the skip
		// condition is what spares the second provider.
		StopOnSuccess:    true,
		QualityThreshold: 101,
	}

	result, err := o.Run(context.Background(), cfg, "user-1", domain.Record{"email": "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, 0, second.calls)
	assert.Len(t, result.Attempts, 1, "skipped step must not record an attempt")
	assert.Equal(t, "CTO", result.Data["position"])
}

func TestRunAllStepsFail(t *testing.T) {
	first := &fakeClient{id: "alpha", response: failure(domain.CodeNotFound, "no match")}
	o := NewOrchestrator(&fakeResolver{clients: map[string]*fakeClient{"alpha": first}}, testLogger(t))

	cfg := Config{
		Operation: domain.OpFindEmail,
		Steps:     []Step{{ProviderID: "alpha", Priority: 1}},
	}

	result, err := o.Run(context.Background(), cfg, "user-1", domain.Record{"domain": "b.com"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Nil(t, result.Data)
	assert.Empty(t, result.ProvidersUsed)
}

func TestRunUnresolvableProviderBecomesFailedAttempt(t *testing.T) {
	second := &fakeClient{id: "beta", response: success(map[string]any{"email": "x@y.com"}, 1.0)}
	o := NewOrchestrator(&fakeResolver{clients: map[string]*fakeClient{"beta": second}}, testLogger(t))

	cfg := Config{
		Operation: domain.OpFindEmail,
		Steps: []Step{
			{ProviderID: "missing", Priority: 1},
			{ProviderID: "beta", Priority: 2},
		},
		StopOnSuccess: true,
	}

	result, err := o.Run(context.Background(), cfg, "user-1", domain.Record{"domain": "y.com"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "missing", result.Attempts[0].ProviderID)
	assert.Equal(t, domain.CodeNotFound, result.Attempts[0].Error.Code)
}

func TestSkipConditionMatches(t *testing.T) {
	tests := []struct {
		name string
		cond SkipCondition
		data map[string]any
		want bool
	}{
		{"exists on populated field", SkipCondition{Field: "a", Operator: OperatorExists}, map[string]any{"a": "x"}, true},
		{"exists on empty string", SkipCondition{Field: "a", Operator: OperatorExists}, map[string]any{"a": ""}, false},
		{"exists on absent field", SkipCondition{Field: "a", Operator: OperatorExists}, map[string]any{}, false},
		{"equals match", SkipCondition{Field: "a", Operator: OperatorEquals, Value: "x"}, map[string]any{"a": "x"}, true},
		{"equals mismatch", SkipCondition{Field: "a", Operator: OperatorEquals, Value: "x"}, map[string]any{"a": "y"}, false},
		{"not equals", SkipCondition{Field: "a", Operator: OperatorNotEquals, Value: "x"}, map[string]any{"a": "y"}, true},
		{"equals on nested map", SkipCondition{Field: "a", Operator: OperatorEquals, Value: "x"},
			map[string]any{"a": map[string]any{"city": "Toronto"}}, false},
		{"not equals on nested map", SkipCondition{Field: "a", Operator: OperatorNotEquals, Value: "x"},
			map[string]any{"a": map[string]any{"city": "Toronto"}}, true},
		{"equals matching maps", SkipCondition{Field: "a", Operator: OperatorEquals, Value: map[string]any{"k": "v"}},
			map[string]any{"a": map[string]any{"k": "v"}}, true},
		{"unknown operator", SkipCondition{Field: "a", Operator: "like"}, map[string]any{"a": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(tt.data))
		})
	}
}

func TestPresetsCoverChainOperations(t *testing.T) {
	presets := Presets()
	for _, op := range []domain.Operation{domain.OpFindEmail, domain.OpEnrichPerson, domain.OpEnrichCompany} {
		cfg, ok := presets[op]
		require.True(t, ok, "missing preset for %s", op)
		assert.Equal(t, op, cfg.Operation)
		assert.NotEmpty(t, cfg.Steps)
	}

	_, ok := PresetFor(domain.OpVerifyEmail)
	assert.False(t, ok)
}
