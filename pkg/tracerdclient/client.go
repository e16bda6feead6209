// Package tracerdclient is a thin HTTP client for the daemon's local
// control RPC surface (spec §4.8), mirroring the original CLI's
// DaemonClient.
package tracerdclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to a running tracerd instance's control surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against baseURL (e.g. "http://127.0.0.1:8722") with
// the original implementation's 30-second request timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StartResponse mirrors the daemon's /start response body.
type StartResponse struct {
	RunName      string `json:"run_name"`
	RunID        string `json:"run_id"`
	PipelineName string `json:"pipeline_name"`
}

// StopResponse mirrors the daemon's /stop response body.
type StopResponse struct {
	WasActive bool `json:"was_active"`
}

// InfoInner mirrors the active-run portion of /info.
type InfoInner struct {
	RunName      string    `json:"run_name"`
	RunID        string    `json:"run_id"`
	PipelineName string    `json:"pipeline_name"`
	StartTime    time.Time `json:"start_time"`
	Tags         []string  `json:"tags,omitempty"`
}

// InfoResponse mirrors the daemon's /info response body.
type InfoResponse struct {
	Inner     *InfoInner `json:"inner,omitempty"`
	Processes []string   `json:"processes"`
}

// StartRun creates and activates a new Run.
func (c *Client) StartRun(ctx context.Context, runName, pipelineName, traceID string) (StartResponse, error) {
	var out StartResponse
	err := c.postJSON(ctx, "/start", map[string]string{
		"run_name":      runName,
		"pipeline_name": pipelineName,
		"trace_id":      traceID,
	}, &out)
	return out, err
}

// StopRun deactivates the current Run.
func (c *Client) StopRun(ctx context.Context) (StopResponse, error) {
	var out StopResponse
	err := c.postJSON(ctx, "/stop", nil, &out)
	return out, err
}

// EndRun is an alias of StopRun returning no body (202 Accepted).
func (c *Client) EndRun(ctx context.Context) error {
	return c.postJSON(ctx, "/end", nil, nil)
}

// Terminate requests daemon shutdown.
func (c *Client) Terminate(ctx context.Context) error {
	return c.postJSON(ctx, "/terminate", nil, nil)
}

// Info fetches the daemon's current run and monitored-process preview.
func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	var out InfoResponse
	err := c.getJSON(ctx, "/info", &out)
	return out, err
}

// Tag appends tags to the current Run.
func (c *Client) Tag(ctx context.Context, tags []string) error {
	return c.postJSON(ctx, "/tag", map[string][]string{"tags": tags}, nil)
}

// Log emits an ad-hoc log event.
func (c *Client) Log(ctx context.Context, body string) error {
	return c.postJSON(ctx, "/log", map[string]string{"body": body}, nil)
}

// Alert emits an ad-hoc alert event.
func (c *Client) Alert(ctx context.Context, body string) error {
	return c.postJSON(ctx, "/alert", map[string]string{"body": body}, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tracerdclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("tracerdclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("tracerdclient: building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tracerdclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("tracerdclient: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tracerdclient: decoding response: %w", err)
	}
	return nil
}
