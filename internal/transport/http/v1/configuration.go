package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// ListConfigurations lists all settings ordered by key.
// GET /api/mcp/configuration
func (h *Handler) ListConfigurations(c echo.Context) error {
	cfgs, err := h.service.ListConfigurations(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	if cfgs == nil {
		cfgs = []domain.Configuration{}
	}
	return c.JSON(http.StatusOK, cfgs)
}

// GET /api/mcp/configuration/:key
func (h *Handler) GetConfiguration(c echo.Context) error {
	cfg, err := h.service.GetConfiguration(c.Request().Context(), c.Param("key"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// POST /api/mcp/configuration
func (h *Handler) CreateConfiguration(c echo.Context) error {
	var req domain.ConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cfg, err := h.service.CreateConfiguration(c.Request().Context(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, cfg)
}

// PUT /api/mcp/configuration/:key
func (h *Handler) UpdateConfiguration(c echo.Context) error {
	var req domain.ConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cfg, err := h.service.UpdateConfiguration(c.Request().Context(), c.Param("key"), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}
