package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// ListAgents lists all registered agents.
// GET /api/mcp/agents
func (h *Handler) ListAgents(c echo.Context) error {
	agents, err := h.service.ListAgents(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	return c.JSON(http.StatusOK, agents)
}

// RegisterAgent registers a new agent.
// POST /api/mcp/agents
func (h *Handler) RegisterAgent(c echo.Context) error {
	var req domain.RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	agent, err := h.service.RegisterAgent(c.Request().Context(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, agent)
}

// GetAgent gets a specific agent by ID.
// GET /api/mcp/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	agent, err := h.service.GetAgent(c.Request().Context(), c.Param("agent_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}

// UpdateAgent merges the given fields into an agent.
// PUT /api/mcp/agents/:agent_id
func (h *Handler) UpdateAgent(c echo.Context) error {
	var patch domain.AgentPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}

	agent, err := h.service.UpdateAgent(c.Request().Context(), c.Param("agent_id"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}

// UnregisterAgent removes an agent and cancels its pending tasks.
// DELETE /api/mcp/agents/:agent_id
func (h *Handler) UnregisterAgent(c echo.Context) error {
	if err := h.service.UnregisterAgent(c.Request().Context(), c.Param("agent_id")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Heartbeat records agent liveness.
// POST /api/mcp/agents/:agent_id/heartbeat
func (h *Handler) Heartbeat(c echo.Context) error {
	if err := h.service.Heartbeat(c.Request().Context(), c.Param("agent_id")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, domain.HeartbeatResponse{Status: "heartbeat_received"})
}
