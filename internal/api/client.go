package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/httputil"
)

// Client reads a remote run history served by Server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient creates a client for the server at base (for example
// "http://localhost:8080"). A nil c uses http.DefaultClient.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// ListRuns fetches up to limit runs, newest first. limit 0 returns all.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*db.Run, error) {
	var runs []*db.Run
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.do(ctx, http.MethodGet, "/api/runs?"+q.Encode(), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun fetches one run and its outputs.
func (c *Client) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	var detail RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteRun removes a run from the remote history.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(id), nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body httputil.ErrorBody
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", body.Error, db.ErrRunNotFound)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, body.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
