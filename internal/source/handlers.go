package source

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamweld/streamweld/internal/catalog"
)

// Handlers provides HTTP handlers for source registry operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new source handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers source routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Add)
	g.PUT("/reorder", h.Reorder)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Remove)
	g.PUT("/:id/active", h.SetActive)
}

func httpError(err error) error {
	var verr *catalog.ValidationError
	switch {
	case errors.Is(err, catalog.ErrSourceNotFound), errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalidOrder), errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// List returns all sources in priority order.
// GET /api/v1/sources
func (h *Handlers) List(c echo.Context) error {
	sources, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sources)
}

// Get returns one source.
// GET /api/v1/sources/:id
func (h *Handlers) Get(c echo.Context) error {
	src, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, src)
}

// Add registers a new source.
// POST /api/v1/sources
func (h *Handlers) Add(c echo.Context) error {
	var input AddInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	src, err := h.service.Add(c.Request().Context(), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, src)
}

// Update applies partial changes to a source.
// PATCH /api/v1/sources/:id
func (h *Handlers) Update(c echo.Context) error {
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	src, err := h.service.Update(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, src)
}

// Remove deletes a source.
// DELETE /api/v1/sources/:id
func (h *Handlers) Remove(c echo.Context) error {
	if err := h.service.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetActive toggles a source's active state.
// PUT /api/v1/sources/:id/active
func (h *Handlers) SetActive(c echo.Context) error {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.service.SetActive(c.Request().Context(), c.Param("id"), body.Active); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reorder replaces the priority order with the given ID permutation.
// PUT /api/v1/sources/reorder
func (h *Handlers) Reorder(c echo.Context) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.service.Reorder(c.Request().Context(), body.IDs); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
