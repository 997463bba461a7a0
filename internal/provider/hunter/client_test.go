package hunter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

type staticCredentials struct {
	secret string
	err    error
}

func (s staticCredentials) GetActive(context.Context, string, string) (*domain.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Credential{ProviderID: ProviderID, UserID: "user-1", Secret: s.secret, Active: true}, nil
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	cfg := domain.ProviderConfig{
		ID:         ProviderID,
		BaseURL:    baseURL,
		Active:     true,
		Operations: []domain.Operation{domain.OpFindEmail, domain.OpVerifyEmail},
	}
	client, err := New(cfg, provider.Deps{
		Credentials: staticCredentials{secret: "hunter-key"},
		Logger:      log,
	})
	require.NoError(t, err)
	return client.(*Client)
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "hunter-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"data":{"plan_name":"free"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	assert.NoError(t, c.Authenticate(context.Background(), "user-1"))
}

func TestAuthenticateRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"details":"invalid key"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Authenticate(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeAuthentication))
}

func TestFindEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/account", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"plan_name":"free"}}`))
	})
	mux.HandleFunc("/v2/email-finder", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "Ada", r.URL.Query().Get("first_name"))
		assert.Equal(t, "hunter-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"data":{"email":"ada@acme.com","score":97,"first_name":"Ada","last_name":"Lovelace","position":"CTO"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Authenticate(context.Background(), "user-1"))

	resp, err := c.Execute(context.Background(), domain.OpFindEmail,
		domain.Record{"domain": "acme.com", "first_name": "Ada", "last_name": "Lovelace"},
		provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, "ada@acme.com", resp.Data["email"])
	assert.Equal(t, "CTO", resp.Data["position"])
	assert.Equal(t, ProviderID, resp.Metadata.Provider)
	assert.Equal(t, findEmailCredits, resp.Metadata.CreditsUsed)
}

func TestFindEmailNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"email":""}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Execute(context.Background(), domain.OpFindEmail,
		domain.Record{"domain": "acme.com", "first_name": "Ada", "last_name": "Lovelace"},
		provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeNotFound, resp.Error.Code)
}

func TestFindEmailMissingParams(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Execute(context.Background(), domain.OpFindEmail,
		domain.Record{"first_name": "Ada"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, domain.CodeValidation, resp.Error.Code)
	assert.Zero(t, calls, "validation failures must not hit the API")
}

func TestVerifyEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/email-verifier", r.URL.Path)
		w.Write([]byte(`{"data":{"status":"deliverable","score":92,"email":"ada@acme.com"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Execute(context.Background(), domain.OpVerifyEmail,
		domain.Record{"email": "ada@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, "deliverable", resp.Data["verify_status"])
}

func TestUnsupportedOperation(t *testing.T) {
	c := newTestClient(t, "http://unused")

	_, err := c.Execute(context.Background(), domain.OpBulkEnrich, domain.Record{}, provider.ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeOperationFailed))
}
