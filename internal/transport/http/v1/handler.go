// Package v1 provides the coordinator's HTTP API handlers.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agentmcp/internal/domain"
	"github.com/xiaot623/agentmcp/internal/hub"
	"github.com/xiaot623/agentmcp/internal/service"
)

// Prefix is the path prefix of every API route.
const Prefix = "/api/mcp"

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	hub      *hub.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new handler. h may be nil, which disables the event stream.
func NewHandler(service *service.Service, h *hub.Hub) *Handler {
	return &Handler{
		service: service,
		hub:     h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: slog.Default().With("component", "api"),
	}
}

// RegisterRoutes registers API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(Prefix)

	// Agent registry
	g.GET("/agents", h.ListAgents)
	g.POST("/agents", h.RegisterAgent)
	g.GET("/agents/:agent_id", h.GetAgent)
	g.PUT("/agents/:agent_id", h.UpdateAgent)
	g.DELETE("/agents/:agent_id", h.UnregisterAgent)
	g.POST("/agents/:agent_id/heartbeat", h.Heartbeat)

	// Task ledger
	g.GET("/tasks", h.ListTasks)
	g.POST("/tasks", h.CreateTask)
	g.POST("/tasks/dispatch-next", h.DispatchNext)
	g.GET("/tasks/:task_id", h.GetTask)
	g.PUT("/tasks/:task_id/status", h.UpdateTaskStatus)
	g.POST("/tasks/:task_id/execute", h.DispatchTask)
	g.GET("/tasks/:task_id/events", h.ListTaskEvents)

	g.GET("/system/status", h.SystemStatus)

	// Configuration
	g.GET("/configuration", h.ListConfigurations)
	g.POST("/configuration", h.CreateConfiguration)
	g.GET("/configuration/:key", h.GetConfiguration)
	g.PUT("/configuration/:key", h.UpdateConfiguration)

	if h.hub != nil {
		g.GET("/events/ws", h.StreamEvents)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(code string) int {
	switch code {
	case domain.CodeInvalidInput, domain.CodePreconditionFailed, domain.CodeUnsupported:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c echo.Context, err error) error {
	code := domain.KindOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(status, domain.ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: msg, Code: domain.CodeInvalidInput})
}
