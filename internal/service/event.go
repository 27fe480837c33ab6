package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// recordEvent appends a task event and publishes it. Failures are logged only;
// the ledger mutation that triggered the event has already happened.
func (s *Service) recordEvent(ctx context.Context, taskID, agentID string, eventType domain.TaskEventType, payload any) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "task_id", taskID, "type", eventType, "error", err)
		s.metrics.EventFailed()
		return
	}

	event := domain.TaskEvent{
		EventID: "evt_" + uuid.New().String(),
		TaskID:  taskID,
		AgentID: agentID,
		Ts:      s.now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	if err := s.store.CreateTaskEvent(context.WithoutCancel(ctx), &event); err != nil {
		s.logger.Warn("failed to record task event", "task_id", taskID, "type", eventType, "error", err)
		s.metrics.EventFailed()
		return
	}

	if s.events != nil {
		if err := s.events.Publish(event); err != nil {
			s.logger.Warn("failed to publish task event", "task_id", taskID, "type", eventType, "error", err)
		}
	}
}

// ListTaskEvents returns the event log of a task.
func (s *Service) ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	events, err := s.store.ListTaskEvents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	return events, nil
}
