package epg

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for guide queries.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates a new guide handlers instance.
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// RegisterRoutes registers guide routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/:channel/now", h.NowAndNext)
	g.GET("/:channel/state", h.State)
	g.POST("/:channel/refresh", h.Refresh)
}

// NowAndNext returns the current and next program for a channel.
// GET /api/v1/epg/:channel/now?at=2026-01-02T15:04:05Z
func (h *Handlers) NowAndNext(c echo.Context) error {
	at := time.Now().UTC()
	if raw := c.QueryParam("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid at timestamp")
		}
		at = parsed
	}

	result, err := h.manager.GetNowAndNext(c.Request().Context(), c.Param("channel"), at)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// State returns the channel's refresh state.
// GET /api/v1/epg/:channel/state
func (h *Handlers) State(c echo.Context) error {
	state, err := h.manager.StateOf(c.Request().Context(), c.Param("channel"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}

// Refresh triggers an on-demand guide refresh for a channel. A refresh
// already in flight makes this a no-op.
// POST /api/v1/epg/:channel/refresh
func (h *Handlers) Refresh(c echo.Context) error {
	if err := h.manager.EnsureFresh(c.Request().Context(), c.Param("channel")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}
