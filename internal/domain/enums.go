// Package domain defines the core domain models for the coordinator and its agents.
package domain

// AgentStatus represents the registry status of an agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusError    AgentStatus = "error"
)

// AgentStatuses lists every agent status in display order.
var AgentStatuses = []AgentStatus{AgentStatusActive, AgentStatusInactive, AgentStatusError}

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusActive, AgentStatusInactive, AgentStatusError:
		return true
	}
	return false
}

// TaskStatus represents the status of a task in the ledger.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskStatuses lists every task status in lifecycle order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskEventType represents the type of a task event.
type TaskEventType string

const (
	TaskEventCreated        TaskEventType = "task_created"
	TaskEventStatusChanged  TaskEventType = "task_status_changed"
	TaskEventDispatched     TaskEventType = "task_dispatched"
	TaskEventDispatchFailed TaskEventType = "task_dispatch_failed"
	TaskEventCancelled      TaskEventType = "task_cancelled"
)

const (
	// DefaultPriority is used when a task is created without a priority.
	DefaultPriority = 5
	MinPriority     = 1
	MaxPriority     = 10
)
