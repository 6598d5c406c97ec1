// Package automation runs workflows on a remote automation server.
//
// The backend submits the workflow over HTTP, then polls the remote job until
// it reaches a terminal state. Context cancellation stops the polling loop
// and sends a best-effort cancel to the server; an in-flight remote render
// may still finish on the server side, which the sticky-terminal job rules
// absorb locally.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aimatrix/internal/adapter"
	"aimatrix/internal/clock"
	"aimatrix/internal/config"
	"aimatrix/internal/ident"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

const defaultPollInterval = time.Second

// New constructs the remote automation adapter from configuration.
func New(cfg *config.Config, clk clock.Clock, ids ident.Generator, logger *slog.Logger) *adapter.Runner {
	client := NewClient(cfg.Automation.BaseURL, cfg.Automation.APIToken,
		WithTimeout(time.Duration(cfg.Automation.RequestTimeout)*time.Second))
	return adapter.NewRunner(job.TypeAutomation, client, adapter.RunnerOptions{
		Clock:     clk,
		IDs:       ids,
		Logger:    logger,
		Retention: cfg.Workflow.JobRetention,
		Nominal:   time.Duration(cfg.Automation.NominalSeconds) * time.Second,
	})
}

// Client speaks the automation server's job API.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithPollInterval overrides the remote status polling cadence (tests).
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient creates an automation server client.
func NewClient(baseURL, token string, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:        strings.TrimSpace(token),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Ping checks server reachability.
func (c *Client) Ping(ctx context.Context) error {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/health", &payload); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "remote-automation", "ping", "automation server unreachable", err)
	}
	return nil
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type remoteJob struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Run submits the workflow and blocks until the remote job finishes or the
// context is cancelled.
func (c *Client) Run(ctx context.Context, wf *job.Workflow) (json.RawMessage, error) {
	var submitted submitResponse
	if err := c.post(ctx, "/api/execute", wf, &submitted); err != nil {
		return nil, services.Wrap(services.ErrExecutionFailed, "remote-automation", "submit", "", err)
	}
	if submitted.JobID == "" {
		return nil, services.Wrap(services.ErrExecutionFailed, "remote-automation", "submit", "server returned no job id", nil)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.cancelRemote(submitted.JobID)
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var remote remoteJob
		if err := c.get(ctx, "/api/jobs/"+submitted.JobID, &remote); err != nil {
			if ctx.Err() != nil {
				c.cancelRemote(submitted.JobID)
				return nil, ctx.Err()
			}
			return nil, services.Wrap(services.ErrExecutionFailed, "remote-automation", "poll", "", err)
		}
		switch remote.Status {
		case "completed":
			return remote.Result, nil
		case "failed":
			message := remote.Message
			if message == "" {
				message = "remote job failed"
			}
			return nil, services.Wrap(services.ErrExecutionFailed, "remote-automation", "run", message, nil)
		case "cancelled":
			return nil, context.Canceled
		}
	}
}

// cancelRemote best-effort stops the remote job. The local job is already
// terminal by the time this runs, so failures are ignored.
func (c *Client) cancelRemote(remoteID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.post(ctx, "/api/jobs/"+remoteID+"/cancel", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("automation server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
