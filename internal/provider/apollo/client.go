// Package apollo implements the Apollo enrichment provider. Apollo's API is
// asynchronous: every enrichment is submitted, then polled until the remote
// operation reaches a terminal state.
package apollo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/poll"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

const (
	// ProviderID is the catalog identifier for this provider.
	ProviderID = "apollo"

	enrichCredits = 1.0
	bulkCredits   = 0.8 // per record, billed on submission

	statusCompleted  = "COMPLETED"
	statusFailed     = "FAILED"
	completeProgress = 100
)

// Client talks to the Apollo v1 API with X-Api-Key header authentication.
type Client struct {
	*provider.Base
}

// New constructs an Apollo client.
func New(cfg domain.ProviderConfig, deps provider.Deps) (provider.Client, error) {
	return &Client{Base: provider.NewBase(cfg, deps)}, nil
}

// ID returns the provider identifier.
func (c *Client) ID() string {
	return ProviderID
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"X-Api-Key": c.Secret()}
}

// Authenticate resolves the user's key and verifies it with the auth
// health endpoint.
func (c *Client) Authenticate(ctx context.Context, userID string) error {
	if err := c.ResolveCredential(ctx, userID); err != nil {
		return err
	}

	endpoint := c.Config().BaseURL + "/v1/auth/health"
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, c.authHeaders(), nil, nil)
	if err != nil {
		return domain.WrapError(domain.CodeAuthentication, "verify api key", err).WithProvider(ProviderID)
	}
	if status != http.StatusOK {
		mapped := provider.MapHTTPError(ProviderID, status, body)
		mapped.Code = domain.CodeAuthentication
		return mapped
	}
	return nil
}

// Execute dispatches an Apollo operation. Async results are never cached:
// the submit call has remote side effects.
func (c *Client) Execute(ctx context.Context, op domain.Operation, params domain.Record, opts provider.ExecuteOptions) (*provider.Response, error) {
	switch op {
	case domain.OpEnrichPerson:
		return c.Call(ctx, op, params, opts, enrichCredits, 0,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.enrichAsync(ctx, "/v1/people/enrich", params, c.pollConfig(poll.SingleRecord()))
			})
	case domain.OpEnrichCompany:
		return c.Call(ctx, op, params, opts, enrichCredits, 0,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.enrichAsync(ctx, "/v1/organizations/enrich", params, c.pollConfig(poll.SingleRecord()))
			})
	case domain.OpBulkEnrich:
		return c.Call(ctx, op, params, opts, bulkCredits, 0,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.enrichAsync(ctx, "/v1/people/bulk_enrich", params, c.pollConfig(poll.Bulk()))
			})
	default:
		return nil, c.Unsupported(op)
	}
}

type submitResponse struct {
	EnrichmentID string `json:"enrichment_id"`
}

type pollResponse struct {
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Data     map[string]any `json:"data"`
	Error    string         `json:"error"`
}

// enrichAsync submits an enrichment and polls it to a terminal state.
func (c *Client) enrichAsync(ctx context.Context, path string, params domain.Record, cfg poll.Config) (map[string]any, *domain.Error) {
	submitURL := c.Config().BaseURL + path

	var submitted submitResponse
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodPost, submitURL, c.authHeaders(), params, &submitted)
	if err != nil {
		return nil, domain.WrapError(domain.CodeProvider, "submit enrichment", err)
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return nil, provider.MapHTTPError(ProviderID, status, body)
	}
	if submitted.EnrichmentID == "" {
		return nil, domain.NewError(domain.CodeProvider, "submit response missing enrichment id")
	}

	pollURL := fmt.Sprintf("%s/v1/enrichments/%s", c.Config().BaseURL, submitted.EnrichmentID)

	var remoteFailure string
	data, pollErr := poll.Until(ctx, func(ctx context.Context) (poll.Status, map[string]any, error) {
		var out pollResponse
		status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, pollURL, c.authHeaders(), nil, &out)
		if err != nil {
			return poll.StatusPending, nil, err
		}
		if status != http.StatusOK {
			return poll.StatusPending, nil, provider.MapHTTPError(ProviderID, status, body)
		}

		switch {
		case out.Status == statusCompleted || out.Progress >= completeProgress:
			return poll.StatusCompleted, out.Data, nil
		case out.Status == statusFailed:
			remoteFailure = out.Error
			return poll.StatusFailed, nil, nil
		default:
			return poll.StatusPending, nil, nil
		}
	}, cfg)

	if pollErr != nil {
		coded := domain.AsError(pollErr)
		if remoteFailure != "" {
			coded.Message = fmt.Sprintf("%s: %s", coded.Message, remoteFailure)
		}
		return nil, coded
	}
	return data, nil
}

// pollConfig applies catalog option overrides to a polling budget. Kept
// configurable so staging catalogs can poll faster than production.
func (c *Client) pollConfig(cfg poll.Config) poll.Config {
	opts := c.Config().Options
	if v, ok := asInt(opts["poll_max_attempts"]); ok && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, ok := asInt(opts["poll_interval_ms"]); ok && v > 0 {
		cfg.Interval = time.Duration(v) * time.Millisecond
	}
	return cfg
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
