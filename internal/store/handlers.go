package store

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/streamweld/streamweld/internal/catalog"
)

// Handlers provides HTTP handlers for catalog queries.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new catalog handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers catalog routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
	g.GET("/types/:type", h.ListByType)
	g.GET("/:sourceId/:externalId", h.Get)
	g.PUT("/:sourceId/:externalId/favorite", h.SetFavorite)
	g.PUT("/:sourceId/:externalId/position", h.SetPosition)
	g.POST("/index/rebuild", h.RebuildIndex)
}

func itemKey(c echo.Context) catalog.ItemKey {
	return catalog.ItemKey{
		SourceID:   c.Param("sourceId"),
		ExternalID: c.Param("externalId"),
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	case errors.Is(err, catalog.ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Search performs a full-text title search over the catalog.
// GET /api/v1/catalog/search?q=matrix&limit=50
func (h *Handlers) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	items, err := h.service.Search(c.Request().Context(), query, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// ListByType lists all active items of one content type.
// GET /api/v1/catalog/types/:type
func (h *Handlers) ListByType(c echo.Context) error {
	contentType := catalog.ContentType(c.Param("type"))
	if !contentType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid content type")
	}

	items, err := h.service.ListByType(c.Request().Context(), contentType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns a single catalog item.
// GET /api/v1/catalog/:sourceId/:externalId
func (h *Handlers) Get(c echo.Context) error {
	item, err := h.service.Get(c.Request().Context(), itemKey(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// SetFavorite marks or unmarks an item as a favorite.
// PUT /api/v1/catalog/:sourceId/:externalId/favorite
func (h *Handlers) SetFavorite(c echo.Context) error {
	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SetFavorite(c.Request().Context(), itemKey(c), req.Favorite); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetPosition records playback position for an item.
// PUT /api/v1/catalog/:sourceId/:externalId/position
func (h *Handlers) SetPosition(c echo.Context) error {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Seconds < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "position must not be negative")
	}

	if err := h.service.SetLastPosition(c.Request().Context(), itemKey(c), req.Seconds); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RebuildIndex drops and repopulates the full-text index.
// POST /api/v1/catalog/index/rebuild
func (h *Handlers) RebuildIndex(c echo.Context) error {
	if err := h.service.RebuildIndex(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
