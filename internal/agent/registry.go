// Package agent implements the agent side of the coordinator protocol: task
// execution endpoints, liveness heartbeats and the register/unregister lifecycle.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ExecutorFunc runs one task of a given type and returns its JSON result.
type ExecutorFunc func(ctx context.Context, taskID string, params json.RawMessage) (json.RawMessage, error)

// Registry stores executors keyed by task type.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ExecutorFunc
	order     []string
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]ExecutorFunc),
	}
}

// Register adds a new executor for a task type.
func (r *Registry) Register(taskType string, exec ExecutorFunc) error {
	if taskType == "" {
		return fmt.Errorf("task type is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[taskType]; exists {
		return fmt.Errorf("executor already registered for %s", taskType)
	}
	r.executors[taskType] = exec
	r.order = append(r.order, taskType)
	return nil
}

// MustRegister adds an executor or panics.
func (r *Registry) MustRegister(taskType string, exec ExecutorFunc) {
	if err := r.Register(taskType, exec); err != nil {
		panic(err)
	}
}

// Lookup returns the executor for taskType.
func (r *Registry) Lookup(taskType string) (ExecutorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[taskType]
	return exec, ok
}

// TaskTypes returns the supported task types in registration order.
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
