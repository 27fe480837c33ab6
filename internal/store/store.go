// Package store defines the storage interface and its SQL implementation.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// Store defines the interface for data persistence.
//
// Getters return (nil, nil) when the row does not exist. Mutators that address
// an existing row return false when nothing matched.
type Store interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	UpdateAgent(ctx context.Context, agentID string, patch domain.AgentPatch, now time.Time) (bool, error)
	TouchAgentHeartbeat(ctx context.Context, agentID string, now time.Time) (bool, error)
	// DeleteAgent removes the agent and cancels its pending tasks in one transaction.
	// It returns the task IDs that were cancelled.
	DeleteAgent(ctx context.Context, agentID string, reason string, now time.Time) ([]string, bool, error)
	CountAgentsByStatus(ctx context.Context) (map[domain.AgentStatus]int, error)

	// Task operations
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, update domain.TaskUpdate, now time.Time) (bool, error)
	CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	// Configuration operations
	CreateConfiguration(ctx context.Context, cfg *domain.Configuration) error
	GetConfiguration(ctx context.Context, key string) (*domain.Configuration, error)
	ListConfigurations(ctx context.Context) ([]domain.Configuration, error)
	UpdateConfiguration(ctx context.Context, key string, value, description *string, now time.Time) (bool, error)

	// Event operations
	CreateTaskEvent(ctx context.Context, event *domain.TaskEvent) error
	ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
