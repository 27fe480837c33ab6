package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// Coordinator is the subset of the coordinator API an agent calls.
// *mcpclient.Client implements it.
type Coordinator interface {
	RegisterAgent(ctx context.Context, req *domain.RegisterAgentRequest) (*domain.Agent, error)
	Heartbeat(ctx context.Context, agentID string) error
	UnregisterAgent(ctx context.Context, agentID string) error
	UpdateTaskStatus(ctx context.Context, taskID string, req *domain.UpdateTaskStatusRequest) (*domain.Task, error)
}

// Identity describes the agent to its callers.
type Identity struct {
	ID           string
	Name         string
	Capabilities []string
}

// Server is the inbound HTTP server of an agent.
type Server struct {
	echo        *echo.Echo
	identity    Identity
	registry    *Registry
	coordinator Coordinator
	logger      *slog.Logger
}

// NewServer creates the agent's HTTP server.
func NewServer(identity Identity, registry *Registry, coordinator Coordinator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:        e,
		identity:    identity,
		registry:    registry,
		coordinator: coordinator,
		logger:      slog.Default().With("component", "agent", "agent_id", identity.ID),
	}

	// Register routes
	e.POST("/execute", s.handleExecute)
	e.GET("/health", s.handleHealth)
	e.GET("/capabilities", s.handleCapabilities)

	return s
}

// Handler exposes the server's routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.echo.Listener = ln
	return s.echo.Start("")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleExecute runs a task to completion, reporting progress to the coordinator.
// An executor failure is still a successful handoff and answers 200.
func (s *Server) handleExecute(c echo.Context) error {
	var req domain.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body", Code: domain.CodeInvalidInput})
	}
	if req.TaskID == "" || req.TaskType == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "Missing task_id or task_type", Code: domain.CodeInvalidInput})
	}

	// The coordinator's dispatch timeout must not abort a running task.
	ctx := context.WithoutCancel(c.Request().Context())
	logger := s.logger.With("task_id", req.TaskID, "task_type", req.TaskType)

	exec, ok := s.registry.Lookup(req.TaskType)
	if !ok {
		msg := fmt.Sprintf("Unsupported task type: %s", req.TaskType)
		logger.Warn("rejecting task", "reason", msg)
		s.report(ctx, req.TaskID, domain.TaskStatusFailed, nil, msg)
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: msg, Code: domain.CodeUnsupported})
	}

	s.report(ctx, req.TaskID, domain.TaskStatusRunning, nil, "")

	params := req.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	result, err := runExecutor(ctx, exec, req.TaskID, params)
	if err == nil && len(result) > 0 && !json.Valid(result) {
		err = errors.New("invalid result JSON")
	}
	if err != nil {
		msg := fmt.Sprintf("Task execution failed: %v", err)
		logger.Error("task failed", "error", err)
		s.report(ctx, req.TaskID, domain.TaskStatusFailed, nil, msg)
		return c.JSON(http.StatusOK, domain.ExecuteResponse{Status: string(domain.TaskStatusFailed), Error: msg})
	}

	logger.Info("task completed")
	s.report(ctx, req.TaskID, domain.TaskStatusCompleted, result, "")
	return c.JSON(http.StatusOK, domain.ExecuteResponse{Status: string(domain.TaskStatusCompleted), Result: result})
}

// runExecutor calls exec, turning a panic into an error.
func runExecutor(ctx context.Context, exec ExecutorFunc, taskID string, params json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return exec(ctx, taskID, params)
}

// report writes a status update upstream. Failures are logged, never retried.
func (s *Server) report(ctx context.Context, taskID string, status domain.TaskStatus, result json.RawMessage, errMsg string) {
	req := &domain.UpdateTaskStatusRequest{Status: &status, Result: result}
	if errMsg != "" {
		req.ErrorMessage = &errMsg
	}
	if _, err := s.coordinator.UpdateTaskStatus(ctx, taskID, req); err != nil {
		s.logger.Error("failed to update task status", "task_id", taskID, "status", status, "error", err)
		return
	}
	s.logger.Debug("task status updated", "task_id", taskID, "status", status)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.HealthResponse{
		Status:       "healthy",
		AgentID:      s.identity.ID,
		Name:         s.identity.Name,
		Capabilities: s.capabilities(),
	})
}

func (s *Server) handleCapabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.CapabilitiesResponse{
		AgentID:            s.identity.ID,
		Capabilities:       s.capabilities(),
		SupportedTaskTypes: s.registry.TaskTypes(),
	})
}

func (s *Server) capabilities() []string {
	if s.identity.Capabilities == nil {
		return []string{}
	}
	return s.identity.Capabilities
}
