package apollo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/poll"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

type staticCredentials struct{}

func (staticCredentials) GetActive(context.Context, string, string) (*domain.Credential, error) {
	return &domain.Credential{ProviderID: ProviderID, UserID: "user-1", Secret: "apollo-key", Active: true}, nil
}

func newTestClient(t *testing.T, baseURL string, options map[string]any) *Client {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	if options == nil {
		options = map[string]any{"poll_max_attempts": 10, "poll_interval_ms": 1}
	}
	cfg := domain.ProviderConfig{
		ID:         ProviderID,
		BaseURL:    baseURL,
		Active:     true,
		Operations: []domain.Operation{domain.OpEnrichPerson, domain.OpEnrichCompany, domain.OpBulkEnrich},
		Options:    options,
	}
	client, err := New(cfg, provider.Deps{Credentials: staticCredentials{}, Logger: log})
	require.NoError(t, err)
	return client.(*Client)
}

// asyncServer serves a submit endpoint plus a poll endpoint that stays
// pending for pendingPolls responses before the terminal one.
func asyncServer(t *testing.T, pendingPolls int, terminal string) *httptest.Server {
	t.Helper()

	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/auth/health", func(w http.ResponseWriter, r *http.Request) {
		// Only authenticated tests reach this endpoint, so the resolved
		// key must already be attached.
		assert.Equal(t, "apollo-key", r.Header.Get("X-Api-Key"))
		w.Write([]byte(`{"healthy":true}`))
	})
	mux.HandleFunc("POST /v1/people/enrich", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"enrichment_id":"enr-1"}`))
	})
	mux.HandleFunc("GET /v1/enrichments/enr-1", func(w http.ResponseWriter, _ *http.Request) {
		if int(polls.Add(1)) <= pendingPolls {
			w.Write([]byte(`{"status":"PENDING","progress":40}`))
			return
		}
		w.Write([]byte(terminal))
	})
	return httptest.NewServer(mux)
}

func TestEnrichPersonPollsToCompletion(t *testing.T) {
	srv := asyncServer(t, 2,
		`{"status":"COMPLETED","progress":100,"data":{"email":"ada@acme.com","position":"CTO"}}`)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	require.NoError(t, c.Authenticate(context.Background(), "user-1"))

	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "ada@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, "ada@acme.com", resp.Data["email"])
	assert.Equal(t, enrichCredits, resp.Metadata.CreditsUsed)
}

func TestEnrichPersonRemoteFailure(t *testing.T) {
	srv := asyncServer(t, 0, `{"status":"FAILED","error":"person not found upstream"}`)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "ghost@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeProvider, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "person not found upstream")
}

func TestEnrichPersonPollBudgetExhausted(t *testing.T) {
	srv := asyncServer(t, 1000, `{}`)
	defer srv.Close()

	c := newTestClient(t, srv.URL, map[string]any{"poll_max_attempts": 3, "poll_interval_ms": 1})
	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "slow@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeTimeout, resp.Error.Code)
}

func TestSubmitWithoutEnrichmentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpEnrichPerson,
		domain.Record{"email": "ada@acme.com"}, provider.ExecuteOptions{})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, domain.CodeProvider, resp.Error.Code)
}

func TestBulkEnrichUsesBulkEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/people/bulk_enrich", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"enrichment_id":"bulk-1"}`))
	})
	mux.HandleFunc("GET /v1/enrichments/bulk-1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"COMPLETED","data":{"matched":2}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	resp, err := c.Execute(context.Background(), domain.OpBulkEnrich,
		domain.Record{"records": []any{}}, provider.ExecuteOptions{})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, float64(2), resp.Data["matched"])
}

func TestPollConfigOverrides(t *testing.T) {
	tests := []struct {
		name         string
		options      map[string]any
		wantAttempts int
	}{
		{"int override", map[string]any{"poll_max_attempts": 7}, 7},
		{"yaml float override", map[string]any{"poll_max_attempts": float64(8)}, 8},
		{"no override keeps default", map[string]any{}, 30},
		{"non-numeric ignored", map[string]any{"poll_max_attempts": "soon"}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "http://unused", tt.options)
			got := c.pollConfig(poll.SingleRecord())
			assert.Equal(t, tt.wantAttempts, got.MaxAttempts)
		})
	}
}
