package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/crossing.report/internal/httputil"
)

// Client talks to a running monitor.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient creates a client for the monitor at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", req.Method, req.URL.Path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// LoadCSV replaces the monitor's detections with the CSV table read from r.
func (c *Client) LoadCSV(ctx context.Context, r io.Reader) (LoadResponse, error) {
	var out LoadResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/load", r)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "text/csv")
	err = c.do(req, &out)
	return out, err
}

// Counters fetches the running tally.
func (c *Client) Counters(ctx context.Context) (CountersResponse, error) {
	var out CountersResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/counters", nil)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}
