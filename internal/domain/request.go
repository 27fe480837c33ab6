package domain

import "encoding/json"

// RegisterAgentRequest is the body of POST /api/mcp/agents.
type RegisterAgentRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// CreateTaskRequest is the body of POST /api/mcp/tasks.
type CreateTaskRequest struct {
	AgentID    string          `json:"agent_id"`
	TaskType   string          `json:"task_type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Priority   *int            `json:"priority,omitempty"`
}

// UpdateTaskStatusRequest is the body of PUT /api/mcp/tasks/:task_id/status.
type UpdateTaskStatusRequest struct {
	Status       *TaskStatus     `json:"status,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// ConfigurationRequest is the body of configuration create/update calls.
type ConfigurationRequest struct {
	Key         string  `json:"key,omitempty"`
	Value       *string `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
}

// DispatchResponse is returned when a task was handed off to its agent.
type DispatchResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Status string `json:"status"`
}

// ExecuteRequest is sent by the coordinator to an agent's /execute endpoint.
type ExecuteRequest struct {
	TaskID     string          `json:"task_id"`
	TaskType   string          `json:"task_type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ExecuteResponse is returned by an agent's /execute endpoint.
type ExecuteResponse struct {
	Status string          `json:"status"` // completed or failed
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HealthResponse is returned by an agent's /health endpoint.
type HealthResponse struct {
	Status       string   `json:"status"`
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// CapabilitiesResponse is returned by an agent's /capabilities endpoint.
type CapabilitiesResponse struct {
	AgentID            string   `json:"agent_id"`
	Capabilities       []string `json:"capabilities"`
	SupportedTaskTypes []string `json:"supported_task_types"`
}
