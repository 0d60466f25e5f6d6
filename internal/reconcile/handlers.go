package reconcile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamweld/streamweld/internal/catalog"
)

// Handlers provides HTTP handlers for group resolution.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new reconcile handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers group routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/:type", h.ListGroups)
	g.POST("/:type/fallback", h.Fallback)
}

// ListGroups returns the materialized groups for a content type.
// GET /api/v1/groups/:type?includeInactive=true
func (h *Handlers) ListGroups(c echo.Context) error {
	contentType := catalog.ContentType(c.Param("type"))
	includeInactive := c.QueryParam("includeInactive") == "true"

	groups, err := h.service.ResolveGroups(c.Request().Context(), contentType, includeInactive)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groups)
}

// Fallback resolves the next playable candidate after a failed item.
// The playback collaborator posts the member that failed and receives
// the next one in ranked order.
// POST /api/v1/groups/:type/fallback
func (h *Handlers) Fallback(c echo.Context) error {
	contentType := catalog.ContentType(c.Param("type"))

	var body struct {
		SourceID   string `json:"sourceId"`
		ExternalID string `json:"externalId"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	failed := catalog.ItemKey{SourceID: body.SourceID, ExternalID: body.ExternalID}

	groups, err := h.service.ResolveGroups(c.Request().Context(), contentType, false)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	for _, group := range groups {
		for _, it := range group.AllItems {
			if it.Key() != failed {
				continue
			}
			next, err := h.service.ResolveFallback(group, failed)
			if errors.Is(err, catalog.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no further candidates")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			return c.JSON(http.StatusOK, next)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "item not in any group")
}
