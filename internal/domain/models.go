package domain

import (
	"encoding/json"
	"time"
)

// Agent is a worker process registered with the coordinator.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Endpoint      string      `json:"endpoint"`
	Capabilities  []string    `json:"capabilities"`
	Status        AgentStatus `json:"status"`
	LastHeartbeat *time.Time  `json:"last_heartbeat"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// AgentPatch carries the fields of an agent update. Nil fields are left unchanged.
type AgentPatch struct {
	Name         *string      `json:"name,omitempty"`
	Description  *string      `json:"description,omitempty"`
	Endpoint     *string      `json:"endpoint,omitempty"`
	Capabilities *[]string    `json:"capabilities,omitempty"`
	Status       *AgentStatus `json:"status,omitempty"`
}

// Task is a unit of work owned by one agent.
type Task struct {
	// ID is the numeric storage key; TaskID is the public identifier.
	ID           int64           `json:"id"`
	TaskID       string          `json:"task_id"`
	AgentID      string          `json:"agent_id"`
	TaskType     string          `json:"task_type"`
	Parameters   json.RawMessage `json:"parameters"`
	Status       TaskStatus      `json:"status"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Priority     int             `json:"priority"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// TaskFilter narrows a task listing. Empty fields match everything.
type TaskFilter struct {
	AgentID  string
	Status   TaskStatus
	TaskType string
}

// TaskUpdate is a partial task status update. Nil fields are left unchanged.
type TaskUpdate struct {
	Status       *TaskStatus
	Result       json.RawMessage
	ErrorMessage *string
}

// Configuration is a shared key/value setting.
type Configuration struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskEvent is an append-only record of a ledger mutation.
type TaskEvent struct {
	EventID string          `json:"event_id"`
	TaskID  string          `json:"task_id"`
	AgentID string          `json:"agent_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    TaskEventType   `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SystemStatus aggregates registry and ledger counts.
type SystemStatus struct {
	Agents    map[string]int `json:"agents"`
	Tasks     map[string]int `json:"tasks"`
	Timestamp time.Time      `json:"timestamp"`
}
