package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaot623/agentmcp/internal/domain"
	"github.com/xiaot623/agentmcp/internal/policy"
)

// CreateTask enqueues a pending task for an active agent.
func (s *Service) CreateTask(ctx context.Context, req *domain.CreateTaskRequest) (*domain.Task, error) {
	if req.AgentID == "" || req.TaskType == "" {
		return nil, fmt.Errorf("missing required fields: agent_id, task_type: %w", domain.ErrInvalidInput)
	}
	priority := domain.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < domain.MinPriority || priority > domain.MaxPriority {
		return nil, fmt.Errorf("priority %d outside %d-%d: %w", priority, domain.MinPriority, domain.MaxPriority, domain.ErrInvalidInput)
	}
	if len(req.Parameters) > 0 && !json.Valid(req.Parameters) {
		return nil, fmt.Errorf("parameters are not valid JSON: %w", domain.ErrInvalidInput)
	}

	agent, err := s.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if agent.Status != domain.AgentStatusActive {
		return nil, fmt.Errorf("agent %s is %s: %w", agent.ID, agent.Status, domain.ErrPreconditionFailed)
	}

	if err := s.admit(ctx, agent, req, priority); err != nil {
		return nil, err
	}

	params := req.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	task := &domain.Task{
		TaskID:     uuid.New().String(),
		AgentID:    agent.ID,
		TaskType:   req.TaskType,
		Parameters: params,
		Status:     domain.TaskStatusPending,
		Priority:   priority,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.metrics.TaskCreated(task.TaskType)
	s.recordEvent(ctx, task.TaskID, task.AgentID, domain.TaskEventCreated, map[string]any{
		"task_type": task.TaskType,
		"priority":  task.Priority,
	})
	s.logger.Info("task created", "task_id", task.TaskID, "agent_id", task.AgentID, "task_type", task.TaskType, "priority", task.Priority)
	return task, nil
}

// admit consults the admission policy.
func (s *Service) admit(ctx context.Context, agent *domain.Agent, req *domain.CreateTaskRequest, priority int) error {
	if s.policyEngine == nil {
		return nil
	}
	var params any
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &params); err != nil {
			return fmt.Errorf("parameters are not valid JSON: %w", domain.ErrInvalidInput)
		}
	}
	input := policy.Input{
		AgentID:    agent.ID,
		TaskType:   req.TaskType,
		Priority:   priority,
		Parameters: params,
		Agent: policy.AgentInput{
			Status:       string(agent.Status),
			Capabilities: agent.Capabilities,
		},
	}

	decision, reason, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("admission policy: %w", err)
	}
	if decision == policy.DecisionAllow {
		return nil
	}

	s.metrics.AdmissionDenied(req.TaskType)
	s.logger.Info("task rejected by admission policy", "agent_id", agent.ID, "task_type", req.TaskType, "decision", decision, "reason", reason)
	msg := "rejected by admission policy"
	if reason != "" {
		msg += ": " + reason
	}
	return fmt.Errorf("%s: %w", msg, domain.ErrPreconditionFailed)
}

// ListTasks lists tasks in ledger order (priority, created_at, id).
func (s *Service) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("invalid task status %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Service) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return task, nil
}

// UpdateTaskStatus is the single writer of task status. Timestamps follow the
// stored status: pending to running stamps started_at, any terminal status
// stamps completed_at. No transition is rejected.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID string, req *domain.UpdateTaskStatusRequest) (*domain.Task, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("invalid task status %q: %w", *req.Status, domain.ErrInvalidInput)
	}
	if len(req.Result) > 0 && !json.Valid(req.Result) {
		return nil, fmt.Errorf("result is not valid JSON: %w", domain.ErrInvalidInput)
	}

	update := domain.TaskUpdate{
		Status:       req.Status,
		Result:       req.Result,
		ErrorMessage: req.ErrorMessage,
	}
	ok, err := s.store.UpdateTaskStatus(ctx, taskID, update, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		s.metrics.TaskStatusUpdated(string(*req.Status))
		payload := map[string]any{"status": *req.Status}
		if req.ErrorMessage != nil {
			payload["error_message"] = *req.ErrorMessage
		}
		s.recordEvent(ctx, task.TaskID, task.AgentID, domain.TaskEventStatusChanged, payload)
		s.logger.Info("task status updated", "task_id", task.TaskID, "status", *req.Status)
	}
	return task, nil
}
