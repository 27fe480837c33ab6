package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
	"github.com/xiaot623/agentmcp/internal/metrics"
)

// DispatchAccepted is the status returned once an agent accepted a task.
const DispatchAccepted = "task_sent_to_agent"

// DispatchTask pushes a pending task to its agent. The task is marked running
// before the call; a transport failure marks it failed and returns
// domain.ErrTransportFailure. Completion is reported by the agent itself.
func (s *Service) DispatchTask(ctx context.Context, taskID string) (*domain.DispatchResponse, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusPending {
		s.metrics.Dispatched(metrics.OutcomeRejected, 0)
		return nil, fmt.Errorf("task %s is %s, not pending: %w", task.TaskID, task.Status, domain.ErrPreconditionFailed)
	}

	agent, err := s.store.GetAgent(ctx, task.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil || agent.Status != domain.AgentStatusActive {
		s.metrics.Dispatched(metrics.OutcomeRejected, 0)
		return nil, fmt.Errorf("agent %s is not available: %w", task.AgentID, domain.ErrPreconditionFailed)
	}

	// From here on the outcome must be written even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	running := domain.TaskStatusRunning
	if _, err := s.UpdateTaskStatus(ctx, task.TaskID, &domain.UpdateTaskStatusRequest{Status: &running}); err != nil {
		return nil, err
	}

	start := time.Now()
	pushCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout())
	resp, err := s.agentClient.Execute(pushCtx, agent.Endpoint, &domain.ExecuteRequest{
		TaskID:     task.TaskID,
		TaskType:   task.TaskType,
		Parameters: task.Parameters,
	})
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.Dispatched(metrics.OutcomeFailed, elapsed)
		s.logger.Warn("dispatch failed", "task_id", task.TaskID, "agent_id", agent.ID, "endpoint", agent.Endpoint, "error", err)

		msg := err.Error()
		failed := domain.TaskStatusFailed
		if _, uerr := s.UpdateTaskStatus(ctx, task.TaskID, &domain.UpdateTaskStatusRequest{Status: &failed, ErrorMessage: &msg}); uerr != nil {
			s.logger.Error("failed to mark task failed after dispatch error", "task_id", task.TaskID, "error", uerr)
		}
		s.recordEvent(ctx, task.TaskID, agent.ID, domain.TaskEventDispatchFailed, map[string]any{
			"endpoint": agent.Endpoint,
			"error":    msg,
		})
		if !errors.Is(err, domain.ErrTransportFailure) {
			err = fmt.Errorf("%v: %w", err, domain.ErrTransportFailure)
		}
		return nil, fmt.Errorf("dispatch task %s: %w", task.TaskID, err)
	}

	s.metrics.Dispatched(metrics.OutcomeAccepted, elapsed)
	s.recordEvent(ctx, task.TaskID, agent.ID, domain.TaskEventDispatched, map[string]any{
		"endpoint":     agent.Endpoint,
		"agent_status": resp.Status,
		"duration_ms":  elapsed.Milliseconds(),
	})
	s.logger.Info("task dispatched", "task_id", task.TaskID, "agent_id", agent.ID, "duration", elapsed)

	return &domain.DispatchResponse{Status: DispatchAccepted, TaskID: task.TaskID}, nil
}

// DispatchNext dispatches the first pending task in ledger order whose agent
// is active, optionally restricted to one agent.
func (s *Service) DispatchNext(ctx context.Context, agentID string) (*domain.DispatchResponse, error) {
	pending, err := s.ListTasks(ctx, domain.TaskFilter{AgentID: agentID, Status: domain.TaskStatusPending})
	if err != nil {
		return nil, err
	}

	active := map[string]bool{}
	for _, task := range pending {
		ok, seen := active[task.AgentID]
		if !seen {
			agent, err := s.store.GetAgent(ctx, task.AgentID)
			if err != nil {
				return nil, fmt.Errorf("failed to get agent: %w", err)
			}
			ok = agent != nil && agent.Status == domain.AgentStatusActive
			active[task.AgentID] = ok
		}
		if !ok {
			continue
		}

		resp, err := s.DispatchTask(ctx, task.TaskID)
		if errors.Is(err, domain.ErrPreconditionFailed) {
			// Raced with another writer; try the next task.
			continue
		}
		return resp, err
	}
	return nil, fmt.Errorf("no dispatchable pending task: %w", domain.ErrNotFound)
}

func (s *Service) dispatchTimeout() time.Duration {
	if s.config != nil && s.config.DispatchTimeout > 0 {
		return s.config.DispatchTimeout
	}
	return 30 * time.Second
}
