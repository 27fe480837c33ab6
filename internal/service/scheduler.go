package service

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// maxDispatchPerTick bounds one sweep so shutdown is never delayed for long.
const maxDispatchPerTick = 100

// RunScheduler dispatches pending tasks in ledger order every interval until ctx is done.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweepPendingTasks(ctx)
		}
	}
}

// sweepPendingTasks dispatches one task at a time until nothing is eligible.
func (s *Service) sweepPendingTasks(ctx context.Context) int {
	dispatched := 0
	for i := 0; i < maxDispatchPerTick; i++ {
		if ctx.Err() != nil {
			return dispatched
		}
		resp, err := s.DispatchNext(ctx, "")
		switch {
		case err == nil:
			dispatched++
			s.logger.Debug("scheduler dispatched task", "task_id", resp.TaskID)
		case errors.Is(err, domain.ErrNotFound):
			return dispatched
		case errors.Is(err, domain.ErrTransportFailure):
			// The task is already marked failed; move on to the next one.
			continue
		default:
			s.logger.Warn("scheduler sweep failed", "error", err)
			return dispatched
		}
	}
	return dispatched
}
