package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// SystemStatus counts agents and tasks by status.
func (s *Service) SystemStatus(ctx context.Context) (*domain.SystemStatus, error) {
	agentCounts, err := s.store.CountAgentsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count agents: %w", err)
	}
	taskCounts, err := s.store.CountTasksByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	out := &domain.SystemStatus{
		Agents:    map[string]int{},
		Tasks:     map[string]int{},
		Timestamp: s.now(),
	}
	total := 0
	for _, st := range domain.AgentStatuses {
		out.Agents[string(st)] = agentCounts[st]
		total += agentCounts[st]
	}
	out.Agents["total"] = total

	total = 0
	for _, st := range domain.TaskStatuses {
		out.Tasks[string(st)] = taskCounts[st]
		total += taskCounts[st]
	}
	out.Tasks["total"] = total
	return out, nil
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
