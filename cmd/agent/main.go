// Command agent runs a reference agent that registers with the coordinator and
// executes the demo task types "echo" and "wait".
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiaot623/agentmcp/internal/adapter/mcpclient"
	"github.com/xiaot623/agentmcp/internal/agent"
	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/diagnostics"
	"github.com/xiaot623/agentmcp/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAgent(config.AgentConfig{
		AgentID:     "demo-agent",
		Name:        "Demo Agent",
		Description: "Reference agent with echo and wait executors",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	registry := agent.NewRegistry()
	registry.MustRegister("echo", echoTask)
	registry.MustRegister("wait", waitTask)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopGops, err := diagnostics.Start(cfg.GopsAddr, "")
	if err != nil {
		logger.Error("failed to start gops agent", "error", err)
		os.Exit(1)
	}
	defer stopGops()

	logger.Info("starting agent", "agent_id", cfg.AgentID, "port", cfg.Port, "mcp_url", cfg.MCPURL)
	rt := agent.NewRuntime(cfg, registry, mcpclient.NewClient(cfg.MCPURL))
	if err := rt.Run(ctx); err != nil {
		logger.Error("agent stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}

// echoTask returns its parameters unchanged.
func echoTask(_ context.Context, taskID string, params json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"task_id": taskID,
		"echo":    params,
	})
}

type waitParams struct {
	Milliseconds int `json:"ms"`
}

// waitTask sleeps for params.ms milliseconds.
func waitTask(ctx context.Context, _ string, params json.RawMessage) (json.RawMessage, error) {
	var p waitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Milliseconds < 0 {
		return nil, fmt.Errorf("ms must not be negative")
	}

	d := time.Duration(p.Milliseconds) * time.Millisecond
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(map[string]any{"waited_ms": p.Milliseconds})
}
