// Package hunter implements the Hunter email finder/verifier provider.
package hunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
)

const (
	// ProviderID is the catalog identifier for this provider.
	ProviderID = "hunter"

	findEmailCredits   = 1.0
	verifyEmailCredits = 0.5

	findEmailCacheTTL   = 24 * time.Hour
	verifyEmailCacheTTL = 1 * time.Hour
)

// Client talks to the Hunter v2 API. Authentication is an api_key query
// parameter; the account endpoint doubles as the lightweight key check.
type Client struct {
	*provider.Base
}

// New constructs a Hunter client. Registered under ProviderID at bootstrap.
func New(cfg domain.ProviderConfig, deps provider.Deps) (provider.Client, error) {
	return &Client{Base: provider.NewBase(cfg, deps)}, nil
}

// ID returns the provider identifier.
func (c *Client) ID() string {
	return ProviderID
}

// Authenticate resolves the user's API key and verifies it against the
// account endpoint.
func (c *Client) Authenticate(ctx context.Context, userID string) error {
	if err := c.ResolveCredential(ctx, userID); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v2/account?api_key=%s", c.Config().BaseURL, url.QueryEscape(c.Secret()))
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, nil, nil, nil)
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

// Execute dispatches a Hunter operation.
func (c *Client) Execute(ctx context.Context, op domain.Operation, params domain.Record, opts provider.ExecuteOptions) (*provider.Response, error) {
	switch op {
	case domain.OpFindEmail:
		return c.Call(ctx, op, params, opts, findEmailCredits, findEmailCacheTTL,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.findEmail(ctx, params)
			})
	case domain.OpVerifyEmail:
		return c.Call(ctx, op, params, opts, verifyEmailCredits, verifyEmailCacheTTL,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.verifyEmail(ctx, params)
			})
	default:
		return nil, c.Unsupported(op)
	}
}

type finderResponse struct {
	Data struct {
		Email      string  `json:"email"`
		Score      float64 `json:"score"`
		FirstName  string  `json:"first_name"`
		LastName   string  `json:"last_name"`
		Position   string  `json:"position"`
		Company    string  `json:"company"`
		Domain     string  `json:"domain"`
		Confidence float64 `json:"confidence"`
	} `json:"data"`
}

func (c *Client) findEmail(ctx context.Context, params domain.Record) (map[string]any, *domain.Error) {
	companyDomain := params.GetString("domain")
	firstName := params.GetString("first_name")
	lastName := params.GetString("last_name")
	if companyDomain == "" {
		return nil, domain.NewError(domain.CodeValidation, "find_email requires a domain")
	}
	if firstName == "" || lastName == "" {
		return nil, domain.NewError(domain.CodeValidation, "find_email requires first_name and last_name")
	}

	q := url.Values{}
	q.Set("domain", companyDomain)
	q.Set("first_name", firstName)
	q.Set("last_name", lastName)
	q.Set("api_key", c.Secret())
	endpoint := fmt.Sprintf("%s/v2/email-finder?%s", c.Config().BaseURL, q.Encode())

	var out finderResponse
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, nil, nil, &out)
	if err != nil {
		return nil, domain.WrapError(domain.CodeProvider, "email finder request", err)
	}
	if status != http.StatusOK {
		return nil, provider.MapHTTPError(ProviderID, status, body)
	}
	if out.Data.Email == "" {
		return nil, domain.NewError(domain.CodeNotFound, "no email found for contact")
	}

	return map[string]any{
		"email":      out.Data.Email,
		"score":      out.Data.Score,
		"first_name": out.Data.FirstName,
		"last_name":  out.Data.LastName,
		"position":   out.Data.Position,
		"company":    out.Data.Company,
		"domain":     out.Data.Domain,
	}, nil
}

type verifierResponse struct {
	Data struct {
		Status string  `json:"status"`
		Score  float64 `json:"score"`
		Email  string  `json:"email"`
	} `json:"data"`
}

func (c *Client) verifyEmail(ctx context.Context, params domain.Record) (map[string]any, *domain.Error) {
	email := params.GetString("email")
	if email == "" {
		return nil, domain.NewError(domain.CodeValidation, "verify_email requires an email")
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", c.Secret())
	endpoint := fmt.Sprintf("%s/v2/email-verifier?%s", c.Config().BaseURL, q.Encode())

	var out verifierResponse
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, nil, nil, &out)
	if err != nil {
		return nil, domain.WrapError(domain.CodeProvider, "email verifier request", err)
	}
	if status != http.StatusOK {
		return nil, provider.MapHTTPError(ProviderID, status, body)
	}

	return map[string]any{
		"email":         out.Data.Email,
		"verify_status": out.Data.Status,
		"verify_score":  out.Data.Score,
	}, nil
}
