package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

type stubClient struct {
	id        string
	authCalls int
	authErr   error
}

func (s *stubClient) ID() string { return s.id }
func (s *stubClient) Authenticate(context.Context, string) error {
	s.authCalls++
	return s.authErr
}
func (s *stubClient) ValidateConfig() error { return nil }
func (s *stubClient) Execute(context.Context, domain.Operation, domain.Record, ExecuteOptions) (*Response, error) {
	return &Response{Success: true}, nil
}

func stubConstructor(client *stubClient) Constructor {
	return func(cfg domain.ProviderConfig, deps Deps) (Client, error) {
		return client, nil
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("alpha", stubConstructor(&stubClient{id: "alpha"})))

	err := r.Register("alpha", stubConstructor(&stubClient{id: "alpha"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsEmptyIDAndNilConstructor(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register("", stubConstructor(&stubClient{})))
	assert.Error(t, r.Register("alpha", nil))
}

func TestRegistryIDsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("zeta", stubConstructor(&stubClient{id: "zeta"})))
	require.NoError(t, r.Register("alpha", stubConstructor(&stubClient{id: "alpha"})))

	assert.Equal(t, []string{"alpha", "zeta"}, r.IDs())

	ctor, ok := r.Constructor("zeta")
	assert.True(t, ok)
	assert.NotNil(t, ctor)

	_, ok = r.Constructor("missing")
	assert.False(t, ok)
}
