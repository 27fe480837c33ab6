package agent

import (
	"context"
	"log/slog"
	"time"
)

// DefaultHeartbeatInterval is used when no interval is configured.
const DefaultHeartbeatInterval = 30 * time.Second

// RunLiveness sends a heartbeat immediately and then every interval until ctx is done.
// Failed heartbeats are logged and left for the next tick.
func RunLiveness(ctx context.Context, coordinator Coordinator, agentID string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	logger := slog.Default().With("component", "liveness", "agent_id", agentID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("liveness monitor started", "interval", interval)
	for {
		if err := coordinator.Heartbeat(ctx, agentID); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("heartbeat failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("liveness monitor stopped")
			return
		case <-ticker.C:
		}
	}
}
