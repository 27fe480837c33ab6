package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/domain"
)

const shutdownTimeout = 10 * time.Second

// Runtime ties an agent's lifecycle together: register, serve and heartbeat,
// then stop heartbeating, shut down and unregister.
type Runtime struct {
	cfg         *config.AgentConfig
	registry    *Registry
	coordinator Coordinator
	server      *Server
	logger      *slog.Logger
}

// NewRuntime creates a runtime. When cfg lists no capabilities the registry's
// task types are advertised instead.
func NewRuntime(cfg *config.AgentConfig, registry *Registry, coordinator Coordinator) *Runtime {
	caps := cfg.Capabilities
	if len(caps) == 0 {
		caps = registry.TaskTypes()
	}
	identity := Identity{ID: cfg.AgentID, Name: cfg.Name, Capabilities: caps}
	return &Runtime{
		cfg:         cfg,
		registry:    registry,
		coordinator: coordinator,
		server:      NewServer(identity, registry, coordinator),
		logger:      slog.Default().With("component", "agent", "agent_id", cfg.AgentID),
	}
}

// Server returns the inbound HTTP server.
func (r *Runtime) Server() *Server {
	return r.server
}

// Run listens on the configured port and serves until ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", r.cfg.Port, err)
	}
	return r.Serve(ctx, ln)
}

// Serve registers with the coordinator and serves on ln until ctx is done or
// the server fails. Registration is attempted once; on failure nothing is served.
func (r *Runtime) Serve(ctx context.Context, ln net.Listener) error {
	if err := r.register(ctx); err != nil {
		ln.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- r.server.Serve(ln)
	}()

	liveCtx, stopLiveness := context.WithCancel(ctx)
	liveDone := make(chan struct{})
	go func() {
		defer close(liveDone)
		RunLiveness(liveCtx, r.coordinator, r.cfg.AgentID, r.cfg.HeartbeatInterval)
	}()

	r.logger.Info("agent started", "endpoint", r.cfg.Endpoint, "task_types", r.registry.TaskTypes())

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("agent server failed: %w", err)
		}
	}

	stopLiveness()
	<-liveDone

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("failed to shut down agent server gracefully", "error", err)
	}

	if err := r.coordinator.UnregisterAgent(context.WithoutCancel(ctx), r.cfg.AgentID); err != nil {
		r.logger.Error("failed to unregister from coordinator", "error", err)
	} else {
		r.logger.Info("unregistered from coordinator")
	}
	return runErr
}

func (r *Runtime) register(ctx context.Context) error {
	agent, err := r.coordinator.RegisterAgent(ctx, &domain.RegisterAgentRequest{
		ID:           r.cfg.AgentID,
		Name:         r.cfg.Name,
		Description:  r.cfg.Description,
		Endpoint:     r.cfg.Endpoint,
		Capabilities: r.server.capabilities(),
	})
	if err != nil {
		return fmt.Errorf("failed to register with coordinator: %w", err)
	}
	r.logger.Info("registered with coordinator", "status", agent.Status)
	return nil
}
