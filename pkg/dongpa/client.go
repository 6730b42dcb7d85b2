// Package dongpa is a Go client for the dongpa-server HTTP API. It depends
// only on the standard library and declares its own wire types.
package dongpa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dongpa api: %d %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the dongpa-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new dongpa API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports the server status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out.Status, err
}

// Describe returns the description of a mode.
func (c *Client) Describe(ctx context.Context, mode string) (Description, error) {
	var out Description
	err := c.do(ctx, http.MethodGet, "/api/dongpa/summary/"+url.PathEscape(mode), nil, &out)
	return out, err
}

// Signal computes the live signal for cfg. Zero fields take server defaults.
func (c *Client) Signal(ctx context.Context, cfg StrategyConfig) (*Signal, error) {
	var out Signal
	if err := c.do(ctx, http.MethodPost, "/api/dongpa/signals", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backtest runs a backtest on the server.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*Backtest, error) {
	var out Backtest
	if err := c.do(ctx, http.MethodPost, "/api/dongpa/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Compare backtests the configuration grid.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*Comparison, error) {
	var out Comparison
	if err := c.do(ctx, http.MethodPost, "/api/dongpa/compare", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report fetches a performance report.
func (c *Client) Report(ctx context.Context, req BacktestRequest) (*Report, error) {
	var out Report
	if err := c.do(ctx, http.MethodPost, "/api/dongpa/report", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists archived runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	var out struct {
		Runs []Run `json:"runs"`
	}
	path := "/api/dongpa/runs?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Run fetches one archived run and its ledger.
func (c *Client) Run(ctx context.Context, id string) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodGet, "/api/dongpa/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bars fetches the most recent daily bars.
func (c *Client) Bars(ctx context.Context, days int) ([]Bar, error) {
	var out struct {
		Bars []Bar `json:"bars"`
	}
	path := "/api/bars?days=" + strconv.Itoa(days)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Bars, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
