package ingest

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamweld/streamweld/internal/catalog"
)

// Handlers provides HTTP handlers for ingestion and sync operations.
type Handlers struct {
	service     *Service
	coordinator *Coordinator
}

// NewHandlers creates a new ingest handlers instance.
func NewHandlers(service *Service, coordinator *Coordinator) *Handlers {
	return &Handlers{service: service, coordinator: coordinator}
}

// RegisterRoutes registers ingest routes on an Echo group. The group is
// expected to be rooted at the sources resource.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/ingest", h.Ingest)
	g.POST("/:id/sync", h.Sync)
}

// Ingest accepts a pre-parsed item batch for a source. Used by external
// parser collaborators that push rather than being pulled.
// POST /api/v1/sources/:id/ingest
func (h *Handlers) Ingest(c echo.Context) error {
	var items []catalog.ParsedItem
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := h.service.Ingest(c.Request().Context(), c.Param("id"), items)
	if errors.Is(err, catalog.ErrSourceNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// Sync triggers an on-demand fetch-and-ingest for a source through its
// registered provider.
// POST /api/v1/sources/:id/sync
func (h *Handlers) Sync(c echo.Context) error {
	report, err := h.coordinator.SyncSource(c.Request().Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrSourceNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
