// Package agentclient provides the HTTP client the coordinator uses to hand tasks to agents.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept in the diagnostic.
const maxErrorBody = 512

// Client is an HTTP client for invoking agents.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new agent client. timeout bounds each execute call.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Execute POSTs the task to {endpoint}/execute. Any transport error or non-2xx
// response is returned wrapped in domain.ErrTransportFailure.
func (c *Client) Execute(ctx context.Context, endpoint string, req *domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/execute"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v: %w", err, domain.ErrTransportFailure)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Task-ID", req.TaskID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent: %v: %w", err, domain.ErrTransportFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("agent returned status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(bodyBytes)), domain.ErrTransportFailure)
	}

	// The agent's body is informational; the ledger is updated by the agent itself.
	var out domain.ExecuteResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return &out, nil
}

// Health fetches {endpoint}/health.
func (c *Client) Health(ctx context.Context, endpoint string) (*domain.HealthResponse, error) {
	url := strings.TrimSuffix(endpoint, "/") + "/health"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent: %v: %w", err, domain.ErrTransportFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned status %d: %w", resp.StatusCode, domain.ErrTransportFailure)
	}
	var out domain.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &out, nil
}
