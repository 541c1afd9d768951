// Package swifttrader is a Go SDK for the swift-trader HTTP API.
package swifttrader

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

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/store"
)

// Client provides a Go SDK for interacting with the swift-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new swift-trader API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError is a failed API call. Code is the server's error code, empty when
// the response carried no envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("swift-trader: %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// RunBacktest runs one backtest.
func (c *Client) RunBacktest(ctx context.Context, req backtest.Request) (*backtest.Response, error) {
	var resp backtest.Response
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest/simulate-trade", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep runs a parameter sweep.
func (c *Client) Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error) {
	var resp backtest.SweepResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest/sweep", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns lists the most recent runs. A limit of zero uses the server
// default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	path := "/api/v1/backtest/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var runs []store.RunSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun retrieves a stored run.
func (c *Client) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	var run store.RunRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/backtest/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Strategies lists the registered strategy names.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/api/v1/strategies", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message, apiErr.Details = env.Error.Code, env.Error.Message, env.Error.Details
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
