package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/credisync/credisync/internal/schema"
)

// Client talks to the central store over its REST surface.
//
// Rows live at <base>/rest/v1/<table>. Upserts POST the batch with the
// merge-duplicates preference; queries filter server-side by tenant and
// updated_at and order ascending so merge order is deterministic.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client for the given base URL, authenticating
// every call with the bearer token. A nil httpClient gets a default
// with a 30 second overall timeout; per-batch deadlines come from the
// caller's context.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
	}
}

// Upsert implements Endpoint.Upsert.
func (c *Client) Upsert(ctx context.Context, table string, rows []*schema.Record) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table, nil), bytes.NewReader(body))
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: "upsert", Table: table, Status: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}
	return nil
}

// Query implements Endpoint.Query.
func (c *Client) Query(ctx context.Context, table, tenantID string, sinceMillis int64) ([]*schema.Record, error) {
	params := url.Values{}
	params.Set("tenant_id", "eq."+tenantID)
	params.Set("updated_at", fmt.Sprintf("gt.%d", sinceMillis))
	params.Set("order", "updated_at.asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table, params), nil)
	if err != nil {
		return nil, &Error{Op: "query", Table: table, Err: err}
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "query", Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "query", Table: table, Status: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	var rows []*schema.Record
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &Error{Op: "query", Table: table, Err: fmt.Errorf("failed to decode rows: %w", err)}
	}
	return rows, nil
}

func (c *Client) tableURL(table string, params url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// readErrorBody returns a truncated error body for diagnostics.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(b) == 0 {
		return "no response body"
	}
	return string(b)
}
