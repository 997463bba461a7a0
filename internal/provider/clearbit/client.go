// Package clearbit implements the Clearbit person/company enrichment provider.
package clearbit

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
	ProviderID = "clearbit"

	enrichCredits = 1.0

	personCacheTTL  = 12 * time.Hour
	companyCacheTTL = 24 * time.Hour
)

// Client talks to the Clearbit v2 API using bearer authentication.
type Client struct {
	*provider.Base
}

// New constructs a Clearbit client.
func New(cfg domain.ProviderConfig, deps provider.Deps) (provider.Client, error) {
	return &Client{Base: provider.NewBase(cfg, deps)}, nil
}

// ID returns the provider identifier.
func (c *Client) ID() string {
	return ProviderID
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.Secret()}
}

// Authenticate resolves the user's key and checks it against the usage
// endpoint.
func (c *Client) Authenticate(ctx context.Context, userID string) error {
	if err := c.ResolveCredential(ctx, userID); err != nil {
		return err
	}

	endpoint := c.Config().BaseURL + "/v2/usage"
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

// Execute dispatches a Clearbit operation.
func (c *Client) Execute(ctx context.Context, op domain.Operation, params domain.Record, opts provider.ExecuteOptions) (*provider.Response, error) {
	switch op {
	case domain.OpEnrichPerson:
		return c.Call(ctx, op, params, opts, enrichCredits, personCacheTTL,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.enrichPerson(ctx, params)
			})
	case domain.OpEnrichCompany:
		return c.Call(ctx, op, params, opts, enrichCredits, companyCacheTTL,
			func(ctx context.Context) (map[string]any, *domain.Error) {
				return c.enrichCompany(ctx, params)
			})
	default:
		return nil, c.Unsupported(op)
	}
}

type personResponse struct {
	Name struct {
		GivenName  string `json:"givenName"`
		FamilyName string `json:"familyName"`
	} `json:"name"`
	Email      string `json:"email"`
	Location   string `json:"location"`
	Employment struct {
		Name   string `json:"name"`
		Title  string `json:"title"`
		Domain string `json:"domain"`
	} `json:"employment"`
	LinkedIn struct {
		Handle string `json:"handle"`
	} `json:"linkedin"`
}

func (c *Client) enrichPerson(ctx context.Context, params domain.Record) (map[string]any, *domain.Error) {
	email := params.GetString("email")
	if email == "" {
		return nil, domain.NewError(domain.CodeValidation, "enrich_person requires an email")
	}

	endpoint := fmt.Sprintf("%s/v2/people/find?email=%s", c.Config().BaseURL, url.QueryEscape(email))

	var out personResponse
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, c.authHeaders(), nil, &out)
	if err != nil {
		return nil, domain.WrapError(domain.CodeProvider, "person lookup request", err)
	}
	if status != http.StatusOK {
		return nil, provider.MapHTTPError(ProviderID, status, body)
	}

	return map[string]any{
		"first_name": out.Name.GivenName,
		"last_name":  out.Name.FamilyName,
		"email":      out.Email,
		"location":   out.Location,
		"company":    out.Employment.Name,
		"position":   out.Employment.Title,
		"domain":     out.Employment.Domain,
		"linkedin":   out.LinkedIn.Handle,
	}, nil
}

type companyResponse struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Category struct {
		Industry string `json:"industry"`
		Sector   string `json:"sector"`
	} `json:"category"`
	Metrics struct {
		Employees      int    `json:"employees"`
		EstimatedUsers int    `json:"estimatedUsers"`
		Raised         int64  `json:"raised"`
		EmployeesRange string `json:"employeesRange"`
	} `json:"metrics"`
	Location string `json:"location"`
}

func (c *Client) enrichCompany(ctx context.Context, params domain.Record) (map[string]any, *domain.Error) {
	companyDomain := params.GetString("domain")
	if companyDomain == "" {
		return nil, domain.NewError(domain.CodeValidation, "enrich_company requires a domain")
	}

	endpoint := fmt.Sprintf("%s/v2/companies/find?domain=%s", c.Config().BaseURL, url.QueryEscape(companyDomain))

	var out companyResponse
	status, body, err := provider.DoJSON(ctx, c.HTTPClient(), http.MethodGet, endpoint, c.authHeaders(), nil, &out)
	if err != nil {
		return nil, domain.WrapError(domain.CodeProvider, "company lookup request", err)
	}
	if status != http.StatusOK {
		return nil, provider.MapHTTPError(ProviderID, status, body)
	}

	return map[string]any{
		"company":         out.Name,
		"domain":          out.Domain,
		"industry":        out.Category.Industry,
		"sector":          out.Category.Sector,
		"employees":       out.Metrics.Employees,
		"employees_range": out.Metrics.EmployeesRange,
		"raised":          out.Metrics.Raised,
		"location":        out.Location,
	}, nil
}
