package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// UnregisterReason is written to every pending task cancelled by agent removal.
const UnregisterReason = "Agent unregistered"

func (s *Service) RegisterAgent(ctx context.Context, req *domain.RegisterAgentRequest) (*domain.Agent, error) {
	if req.ID == "" || req.Name == "" || req.Endpoint == "" {
		return nil, fmt.Errorf("missing required fields: id, name, endpoint: %w", domain.ErrInvalidInput)
	}

	now := s.now()
	caps := req.Capabilities
	if caps == nil {
		caps = []string{}
	}
	agent := &domain.Agent{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		Endpoint:      req.Endpoint,
		Capabilities:  caps,
		Status:        domain.AgentStatusActive,
		LastHeartbeat: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	s.metrics.AgentRegistered()
	s.logger.Info("agent registered", "agent_id", agent.ID, "endpoint", agent.Endpoint, "capabilities", agent.Capabilities)
	return agent, nil
}

func (s *Service) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	return agent, nil
}

// UpdateAgent merges the provided fields into the agent.
func (s *Service) UpdateAgent(ctx context.Context, agentID string, patch domain.AgentPatch) (*domain.Agent, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("invalid agent status %q: %w", *patch.Status, domain.ErrInvalidInput)
	}

	ok, err := s.store.UpdateAgent(ctx, agentID, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	return s.GetAgent(ctx, agentID)
}

// Heartbeat records liveness and forces the agent active.
func (s *Service) Heartbeat(ctx context.Context, agentID string) error {
	ok, err := s.store.TouchAgentHeartbeat(ctx, agentID, s.now())
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	s.metrics.Heartbeat()
	s.logger.Debug("heartbeat received", "agent_id", agentID)
	return nil
}

// UnregisterAgent deletes the agent and cancels its pending tasks atomically.
// Running tasks are left as they are.
func (s *Service) UnregisterAgent(ctx context.Context, agentID string) error {
	cancelled, ok, err := s.store.DeleteAgent(ctx, agentID, UnregisterReason, s.now())
	if err != nil {
		return fmt.Errorf("failed to unregister agent: %w", err)
	}
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}

	for _, taskID := range cancelled {
		s.metrics.TaskStatusUpdated(string(domain.TaskStatusCancelled))
		s.recordEvent(ctx, taskID, agentID, domain.TaskEventCancelled, map[string]any{
			"status":        domain.TaskStatusCancelled,
			"error_message": UnregisterReason,
		})
	}

	s.metrics.AgentUnregistered(len(cancelled))
	s.logger.Info("agent unregistered", "agent_id", agentID, "cancelled_tasks", len(cancelled))
	return nil
}
