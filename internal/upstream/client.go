// Package upstream is the client for the provider's MSP REST API: tenant
// listing, subscription lookup, user listing and billing usage.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/httpclient"
	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/rs/zerolog"
)

// Endpoints consumed by the client, relative to the API base URL.
const (
	EndpointTenants      = "/integrations/msp/tenants"
	EndpointSubscription = "/integrations/billing/subscription"
	EndpointUsers        = "/users"
	EndpointUsage        = "/integrations/billing/usage"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 16 << 20

// FailureRecorder is notified of every failed upstream call.
type FailureRecorder interface {
	RecordUpstreamFailure(endpoint string)
}

// Client provides methods to interact with the upstream API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   FailureRecorder
	logger     zerolog.Logger
}

// ClientConfig holds configuration for creating a new Client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	AuthScheme string
	Timeout    time.Duration
	Proxy      *config.ProxyConfig

	// HTTPClient overrides the client built from the fields above.
	HTTPClient *http.Client
	// Recorder is optional.
	Recorder FailureRecorder
}

// NewClient creates a new upstream API client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream client: base URL is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream client: invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("upstream client: invalid URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc, err = httpclient.New(httpclient.Options{
			Timeout:    cfg.Timeout,
			Proxy:      cfg.Proxy,
			Token:      cfg.Token,
			AuthScheme: cfg.AuthScheme,
		})
		if err != nil {
			return nil, fmt.Errorf("upstream client: create http client: %w", err)
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: hc,
		recorder:   cfg.Recorder,
		logger:     logger.With().Str("component", "upstream_client").Logger(),
	}, nil
}

// NewClientFromConfig creates a client from the report configuration.
func NewClientFromConfig(cfg *config.ReportConfig, recorder FailureRecorder, logger zerolog.Logger) (*Client, error) {
	hc, err := httpclient.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("upstream client: create http client: %w", err)
	}
	return NewClient(ClientConfig{
		BaseURL:    cfg.APIURL,
		HTTPClient: hc,
		Recorder:   recorder,
	}, logger)
}

// ListTenants retrieves all tenants managed by the MSP account, in API order.
// A non-200 status or an empty body is returned as a *FetchError.
func (c *Client) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	body, err := c.get(ctx, EndpointTenants, nil)
	if err != nil {
		return nil, err
	}
	if isEmptyBody(body) {
		c.recordFailure(EndpointTenants)
		return nil, &FetchError{Endpoint: EndpointTenants, StatusCode: http.StatusOK, Err: ErrEmptyResponse}
	}

	var tenants []models.Tenant
	if err := json.Unmarshal(body, &tenants); err != nil {
		// Some deployments wrap the list in an object.
		var wrapped struct {
			Tenants []models.Tenant `json:"tenants"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Tenants == nil {
			c.recordFailure(EndpointTenants)
			return nil, &FetchError{Endpoint: EndpointTenants, StatusCode: http.StatusOK, Body: snippet(body), Err: fmt.Errorf("decode tenants: %w", err)}
		}
		tenants = wrapped.Tenants
	}

	c.logger.Debug().Int("count", len(tenants)).Msg("listed tenants")
	return tenants, nil
}

// GetSubscription returns the raw subscription document of a tenant.
func (c *Client) GetSubscription(ctx context.Context, tenantID string) ([]byte, error) {
	return c.get(ctx, EndpointSubscription, accountQuery(tenantID))
}

// ListUsers retrieves the non-service users of a tenant. The list is not
// filtered; callers decide which users count as registered.
func (c *Client) ListUsers(ctx context.Context, tenantID string) ([]models.User, error) {
	q := accountQuery(tenantID)
	q.Set("service_user", "false")

	body, err := c.get(ctx, EndpointUsers, q)
	if err != nil {
		return nil, err
	}
	if isEmptyBody(body) {
		return []models.User{}, nil
	}

	var users []models.User
	if err := json.Unmarshal(body, &users); err != nil {
		c.recordFailure(EndpointUsers)
		return nil, &FetchError{Endpoint: EndpointUsers, StatusCode: http.StatusOK, Body: snippet(body), Err: fmt.Errorf("decode users: %w", err)}
	}
	return users, nil
}

// GetUsage retrieves the billing usage counters of a tenant. Counters absent
// from the response are zero.
func (c *Client) GetUsage(ctx context.Context, tenantID string) (models.BillingUsage, error) {
	var usage models.BillingUsage

	body, err := c.get(ctx, EndpointUsage, accountQuery(tenantID))
	if err != nil {
		return usage, err
	}
	if isEmptyBody(body) {
		return usage, nil
	}

	if err := json.Unmarshal(body, &usage); err != nil {
		c.recordFailure(EndpointUsage)
		return models.BillingUsage{}, &FetchError{Endpoint: EndpointUsage, StatusCode: http.StatusOK, Body: snippet(body), Err: fmt.Errorf("decode usage: %w", err)}
	}
	return usage, nil
}

// get performs an authenticated GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, endpoint, query)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint)
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.recordFailure(endpoint)
		return nil, &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream request completed")

	if err := c.checkResponse(endpoint, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, query url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// checkResponse treats anything but 200 as a failed call.
func (c *Client) checkResponse(endpoint string, status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	c.recordFailure(endpoint)
	return &FetchError{Endpoint: endpoint, StatusCode: status, Body: snippet(body)}
}

func (c *Client) recordFailure(endpoint string) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamFailure(endpoint)
	}
}

func accountQuery(tenantID string) url.Values {
	q := url.Values{}
	q.Set("account", tenantID)
	return q
}

func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IsFatal reports whether err came from the tenant listing, the only call
// whose failure aborts a run.
func IsFatal(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Endpoint == EndpointTenants
}
