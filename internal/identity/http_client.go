package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arbor/internal/domain"
)

// HTTPClient talks to the directory service over its REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a directory client. baseURL must not be empty.
func NewHTTPClient(baseURL, apiKey string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("identity base URL cannot be empty")
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ListMemberships fetches the org snapshot from the directory.
func (c *HTTPClient) ListMemberships(ctx context.Context, includeInactive bool) (*OrgSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/org/memberships?include_inactive=%t", c.baseURL, includeInactive)

	var snapshot OrgSnapshot
	if err := c.getJSON(ctx, endpoint, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ResolveNames maps identifier codes to display names.
func (c *HTTPClient) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	endpoint := fmt.Sprintf("%s/api/org/names?ids=%s", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	names := make(map[string]string, len(ids))
	if err := c.getJSON(ctx, endpoint, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: directory returned %d", domain.ErrExternalLookup, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrExternalLookup, err)
	}
	return nil
}
