// Package mcpclient is the HTTP client for the coordinator API, used by agents and mcpctl.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// Per-call timeouts of the agent-facing operations.
const (
	RegisterTimeout     = 10 * time.Second
	HeartbeatTimeout    = 5 * time.Second
	UpdateStatusTimeout = 10 * time.Second
	UnregisterTimeout   = 10 * time.Second

	// DispatchTimeout outlasts the coordinator's default dispatch timeout so
	// the outcome it writes still reaches the caller.
	DispatchTimeout = 35 * time.Second

	defaultTimeout = 30 * time.Second
	apiPrefix      = "/api/mcp"
)

// Client talks to one coordinator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the coordinator at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the coordinator base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RegisterAgent registers the agent. Duplicate ids yield domain.ErrConflict.
func (c *Client) RegisterAgent(ctx context.Context, req *domain.RegisterAgentRequest) (*domain.Agent, error) {
	var out domain.Agent
	if err := c.do(ctx, RegisterTimeout, http.MethodPost, "/agents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Heartbeat reports liveness for agentID.
func (c *Client) Heartbeat(ctx context.Context, agentID string) error {
	return c.do(ctx, HeartbeatTimeout, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/heartbeat", nil, nil)
}

// UnregisterAgent removes the agent from the registry.
func (c *Client) UnregisterAgent(ctx context.Context, agentID string) error {
	return c.do(ctx, UnregisterTimeout, http.MethodDelete, "/agents/"+url.PathEscape(agentID), nil, nil)
}

// UpdateTaskStatus writes a partial task update to the ledger.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, req *domain.UpdateTaskStatusRequest) (*domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, UpdateStatusTimeout, http.MethodPut, "/tasks/"+url.PathEscape(taskID)+"/status", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAgents lists registered agents.
func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var out []domain.Agent
	err := c.do(ctx, defaultTimeout, http.MethodGet, "/agents", nil, &out)
	return out, err
}

// GetAgent fetches one agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	var out domain.Agent
	if err := c.do(ctx, defaultTimeout, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAgent applies a partial agent update.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, patch *domain.AgentPatch) (*domain.Agent, error) {
	var out domain.Agent
	if err := c.do(ctx, defaultTimeout, http.MethodPut, "/agents/"+url.PathEscape(agentID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask enqueues a task.
func (c *Client) CreateTask(ctx context.Context, req *domain.CreateTaskRequest) (*domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, defaultTimeout, http.MethodPost, "/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks lists tasks in ledger order.
func (c *Client) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	q := url.Values{}
	if filter.AgentID != "" {
		q.Set("agent_id", filter.AgentID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.TaskType != "" {
		q.Set("task_type", filter.TaskType)
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []domain.Task
	err := c.do(ctx, defaultTimeout, http.MethodGet, path, nil, &out)
	return out, err
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, defaultTimeout, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DispatchTask asks the coordinator to push a pending task to its agent.
func (c *Client) DispatchTask(ctx context.Context, taskID string) (*domain.DispatchResponse, error) {
	var out domain.DispatchResponse
	if err := c.do(ctx, DispatchTimeout, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/execute", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DispatchNext dispatches the first eligible pending task, optionally for one agent.
func (c *Client) DispatchNext(ctx context.Context, agentID string) (*domain.DispatchResponse, error) {
	path := "/tasks/dispatch-next"
	if agentID != "" {
		path += "?agent_id=" + url.QueryEscape(agentID)
	}
	var out domain.DispatchResponse
	if err := c.do(ctx, DispatchTimeout, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTaskEvents returns a task's event log.
func (c *Client) ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	var out []domain.TaskEvent
	err := c.do(ctx, defaultTimeout, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/events", nil, &out)
	return out, err
}

// SystemStatus returns registry and ledger counts.
func (c *Client) SystemStatus(ctx context.Context) (*domain.SystemStatus, error) {
	var out domain.SystemStatus
	if err := c.do(ctx, defaultTimeout, http.MethodGet, "/system/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConfigurations lists configuration entries.
func (c *Client) ListConfigurations(ctx context.Context) ([]domain.Configuration, error) {
	var out []domain.Configuration
	err := c.do(ctx, defaultTimeout, http.MethodGet, "/configuration", nil, &out)
	return out, err
}

// GetConfiguration fetches one configuration entry.
func (c *Client) GetConfiguration(ctx context.Context, key string) (*domain.Configuration, error) {
	var out domain.Configuration
	if err := c.do(ctx, defaultTimeout, http.MethodGet, "/configuration/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConfiguration creates a configuration entry.
func (c *Client) CreateConfiguration(ctx context.Context, req *domain.ConfigurationRequest) (*domain.Configuration, error) {
	var out domain.Configuration
	if err := c.do(ctx, defaultTimeout, http.MethodPost, "/configuration", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfiguration updates an existing configuration entry.
func (c *Client) UpdateConfiguration(ctx context.Context, key string, req *domain.ConfigurationRequest) (*domain.Configuration, error) {
	var out domain.Configuration
	if err := c.do(ctx, defaultTimeout, http.MethodPut, "/configuration/"+url.PathEscape(key), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchEvents streams task events until ctx is done or the connection drops.
// Empty agentID/taskID subscribe to everything.
func (c *Client) WatchEvents(ctx context.Context, agentID, taskID string, fn func(domain.TaskEvent)) error {
	wsURL, err := c.eventsURL(agentID, taskID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v: %w", wsURL, err, domain.ErrTransportFailure)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var ev domain.TaskEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}

func (c *Client) eventsURL(agentID, taskID string) (string, error) {
	u, err := url.Parse(c.baseURL + apiPrefix + "/events/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	if taskID != "" {
		q.Set("task_id", taskID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrTransportFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError maps an error body back to its domain error kind.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body domain.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if kind := domain.ErrorForCode(body.Code); kind != nil {
		return fmt.Errorf("%s: %w", body.Error, kind)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", body.Error, domain.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", body.Error, domain.ErrConflict)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", body.Error, domain.ErrInvalidInput)
	}
	return fmt.Errorf("coordinator returned status %d: %s", resp.StatusCode, body.Error)
}
