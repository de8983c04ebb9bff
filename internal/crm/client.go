// Package crm is the client for the CRM REST API that owns contacts and
// pipeline opportunities.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/ignite/lead-intelligence/internal/pkg/httpretry"
)

// ErrNotFound is returned when the API reports a missing record.
var ErrNotFound = errors.New("crm: record not found")

const apiVersion = "2021-07-28"

// Client is the CRM API client.
type Client struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new CRM API client authenticated with the given
// access token.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Bearer auth is injected by the oauth2 transport so every request
	// carries it, including retries.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	base := &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: src},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpretry.NewRetryClient(base, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs a request against the CRM API and returns the raw body.
func (c *Client) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetContacts retrieves contacts for a location, up to limit. A zero limit
// asks the API for its default page size.
func (c *Client) GetContacts(ctx context.Context, locationID string, limit int) ([]Contact, error) {
	params := url.Values{}
	params.Set("locationId", locationID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/contacts/?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetching contacts: %w", err)
	}

	var result contactsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing contacts response: %w", err)
	}
	return result.Contacts, nil
}

// GetContact retrieves a single contact by ID.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/contacts/"+contactID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching contact %s: %w", contactID, err)
	}

	var result contactResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing contact response: %w", err)
	}
	return &result.Contact, nil
}

// GetOpportunity retrieves a pipeline opportunity by ID.
func (c *Client) GetOpportunity(ctx context.Context, opportunityID string) (*Opportunity, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/opportunities/"+opportunityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching opportunity %s: %w", opportunityID, err)
	}

	var result opportunityResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing opportunity response: %w", err)
	}
	return &result.Opportunity, nil
}
