package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// ListTasks lists tasks in ledger order.
// GET /api/mcp/tasks?agent_id=&status=&task_type=
func (h *Handler) ListTasks(c echo.Context) error {
	filter := domain.TaskFilter{
		AgentID:  c.QueryParam("agent_id"),
		Status:   domain.TaskStatus(c.QueryParam("status")),
		TaskType: c.QueryParam("task_type"),
	}
	tasks, err := h.service.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask adds a pending task to the ledger.
// POST /api/mcp/tasks
func (h *Handler) CreateTask(c echo.Context) error {
	var req domain.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	task, err := h.service.CreateTask(c.Request().Context(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask gets a task by its public ID.
// GET /api/mcp/tasks/:task_id
func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.service.GetTask(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus applies a partial status update.
// PUT /api/mcp/tasks/:task_id/status
func (h *Handler) UpdateTaskStatus(c echo.Context) error {
	var req domain.UpdateTaskStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	task, err := h.service.UpdateTaskStatus(c.Request().Context(), c.Param("task_id"), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// DispatchTask pushes a pending task to its agent.
// POST /api/mcp/tasks/:task_id/execute
func (h *Handler) DispatchTask(c echo.Context) error {
	resp, err := h.service.DispatchTask(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DispatchNext dispatches the first eligible pending task.
// POST /api/mcp/tasks/dispatch-next?agent_id=
func (h *Handler) DispatchNext(c echo.Context) error {
	resp, err := h.service.DispatchNext(c.Request().Context(), c.QueryParam("agent_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListTaskEvents returns the event log of a task.
// GET /api/mcp/tasks/:task_id/events
func (h *Handler) ListTaskEvents(c echo.Context) error {
	events, err := h.service.ListTaskEvents(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if events == nil {
		events = []domain.TaskEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// SystemStatus returns registry and ledger counts.
// GET /api/mcp/system/status
func (h *Handler) SystemStatus(c echo.Context) error {
	status, err := h.service.SystemStatus(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
