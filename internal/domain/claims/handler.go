package claims

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tpadesk/tpa/internal/platform/auth"
	"github.com/tpadesk/tpa/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the claims API. readMW runs after the role check.
func (h *Handler) RegisterRoutes(api *echo.Group, readMW ...echo.MiddlewareFunc) {
	chain := append([]echo.MiddlewareFunc{auth.RequireRole(auth.RoleHospital, auth.RoleTPA, auth.RoleStaff)}, readMW...)
	g := api.Group("/claims", chain...)
	g.GET("", h.List)
	g.GET("/admission/:admission_id", h.History)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filters := make(map[string]string)
	for _, k := range FilterKeys {
		if v := c.QueryParam(k); v != "" {
			filters[k] = v
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), filters, pg.Limit, pg.Offset)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("list claims")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list claims")
	}
	if items == nil {
		items = []*Claim{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) History(c echo.Context) error {
	admissionID := c.Param("admission_id")
	if admissionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "admission id is required")
	}
	items, err := h.svc.History(c.Request().Context(), admissionID)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("admission_id", admissionID).Msg("claim history")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load claim history")
	}
	if items == nil {
		items = []*Claim{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"admission_id": admissionID,
		"history":      items,
		"current":      Latest(items),
	})
}
