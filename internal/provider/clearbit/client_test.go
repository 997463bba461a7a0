package clearbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/cache"
	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

type staticCredentials struct {
	secret string
}

func (s staticCredentials) GetActive(context.Context, string, string) (*domain.Credential, error) {
	return &domain.Credential{ProviderID: ProviderID, UserID: "user-1", Secret: s.secret, Active: true}, nil
}

func newTestClient(t *testing.T, baseURL string, respCache *cache.ResponseCache) *Client {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	cfg := domain.ProviderConfig{
		ID:         ProviderID,
		BaseURL:    baseURL,
		Active:     true,
		Operations: []domain.Operation{domain.OpEnrichPerson, domain.OpEnrichCompany},
	}
	client, err := New(cfg, provider.Deps{
		Credentials: staticCredentials{secret: "cb-key"},
		Cache:       respCache,
		Logger:      log,
	})
	require.NoError(t, err)
	return client.(*Client)
}

func TestAuthenticateSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/usage", r.URL.Path)
		assert.Equal(t, "Bearer cb-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"requests":0}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	assert.NoError(t, c.Authenticate(context.Background(), "user-1"))
}

func TestEnrichPerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/people/find", r.URL.Path)
		assert.Equal(t, "ada@acme.com", r.URL.Query().Get("email"))
		w.Write([]byte(`{
			"name": {"givenName": "Ada", "familyName": "Lovelace"},
			"email": "ada@acme.com",
			"location": "London",
			"employment": {"name": "Acme", "title": "CTO", "domain": "acme.com"},
			"linkedin": {"handle": "ada-lovelace"}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "ada@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, "Ada", resp.Data["first_name"])
	assert.Equal(t, "CTO", resp.Data["position"])
	assert.Equal(t, "ada-lovelace", resp.Data["linkedin"])
}

func TestEnrichPersonNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"unknown_record"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "ghost@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeNotFound, resp.Error.Code)
	assert.Equal(t, ProviderID, resp.Error.Provider)
}

func TestEnrichCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/companies/find", r.URL.Path)
		w.Write([]byte(`{
			"name": "Acme",
			"domain": "acme.com",
			"category": {"industry": "Software", "sector": "Technology"},
			"metrics": {"employees": 120, "employeesRange": "51-250"},
			"location": "Toronto"
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpEnrichCompany,
		domain.Record{"domain": "acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, "Acme", resp.Data["company"])
	assert.Equal(t, "Software", resp.Data["industry"])
}

func TestRepeatLookupServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	respCache := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"name": {"givenName": "Ada"}, "email": "ada@acme.com"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, respCache)
	params := domain.Record{"email": "ada@acme.com"}

	first, err := c.Execute(context.Background(), domain.OpEnrichPerson, params, provider.ExecuteOptions{})
	require.NoError(t, err)
	assert.False(t, first.Metadata.FromCache)

	second, err := c.Execute(context.Background(), domain.OpEnrichPerson, params, provider.ExecuteOptions{})
	require.NoError(t, err)
	assert.True(t, second.Metadata.FromCache)
	assert.Equal(t, "ada@acme.com", second.Data["email"])
	assert.Equal(t, 1, calls, "second lookup must not hit the API")

	skipped, err := c.Execute(context.Background(), domain.OpEnrichPerson, params,
		provider.ExecuteOptions{SkipCache: true})
	require.NoError(t, err)
	assert.False(t, skipped.Metadata.FromCache)
	assert.Equal(t, 2, calls)
}
