package admission

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tpadesk/tpa/internal/platform/auth"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/admissions", h.ListByPatient,
		auth.RequireRole(auth.RoleHospital, auth.RoleTPA, auth.RoleStaff))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || patientID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.resolver.ListByPatient(ctx, patientID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("patient_id", patientID).Msg("list admissions")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list admissions")
	}
	if items == nil {
		items = []*Admission{}
	}
	return c.JSON(http.StatusOK, items)
}
