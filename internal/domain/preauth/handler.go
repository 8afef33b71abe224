package preauth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tpadesk/tpa/internal/domain/admission"
	"github.com/tpadesk/tpa/internal/domain/claims"
	"github.com/tpadesk/tpa/internal/platform/auth"
	"github.com/tpadesk/tpa/internal/platform/notification"
	"github.com/tpadesk/tpa/pkg/pagination"
)

const (
	msgCreated        = "Pre-authorization request submitted successfully"
	msgDraftSaved     = "Pre-authorization request saved as draft"
	msgUpdated        = "Request updated successfully"
	msgNoAdmission    = "Failed to create request: no admission details found for patient"
	msgMailNotReady   = "Failed to create request: mail relay is not configured"
	msgIntakeInternal = "Failed to create request: internal error"
	msgUpdateFailed   = "Database Error: Failed to update request."
	msgNotFound       = "Pre-authorization request not found"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the pre-auth API. readMW (the route cache) runs on
// the read routes after the role check, so cached views never bypass it.
func (h *Handler) RegisterRoutes(api *echo.Group, readMW ...echo.MiddlewareFunc) {
	g := api.Group("/preauth")

	readChain := append([]echo.MiddlewareFunc{auth.RequireRole(auth.RoleHospital, auth.RoleTPA, auth.RoleStaff)}, readMW...)
	read := g.Group("", readChain...)
	read.GET("", h.List)
	read.GET("/statuses", h.Statuses)
	read.GET("/:id", h.Get)

	g.POST("", h.Intake, auth.RequireRole(auth.RoleHospital, auth.RoleStaff))
	g.PATCH("/:id/status", h.Transition, auth.RequireRole(auth.RoleHospital, auth.RoleTPA, auth.RoleStaff))
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

type intakeResponse struct {
	FormResult
	ID int64 `json:"id,omitempty"`
}

type transitionResponse struct {
	FormResult
	History *claims.Claim `json:"history,omitempty"`
}

func errorResult(msg string) FormResult {
	return FormResult{Message: msg, Type: ResultError}
}

// Intake handles POST /preauth. ?draft=true saves a Draft instead of
// submitting; ?send_email=true dispatches the insurer email block.
func (h *Handler) Intake(c echo.Context) error {
	ctx := c.Request().Context()
	var form IntakeForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, errorResult("Invalid request body"))
	}

	opts := IntakeOptions{Status: StatusPending, ActorID: auth.UserIDFromContext(ctx)}
	if draft, _ := strconv.ParseBool(c.QueryParam("draft")); draft {
		opts.Status = StatusDraft
	}
	opts.SendEmail, _ = strconv.ParseBool(c.QueryParam("send_email"))

	req, err := h.svc.Intake(ctx, &form, opts)
	if err != nil {
		status, msg := intakeFailure(err)
		zerolog.Ctx(ctx).Error().Err(err).Int64("patient_id", form.PatientID).Msg("pre-auth intake failed")
		return c.JSON(status, errorResult(msg))
	}

	msg := msgCreated
	if req.Status == StatusDraft {
		msg = msgDraftSaved
	}
	return c.JSON(http.StatusCreated, intakeResponse{
		FormResult: FormResult{Message: msg, Type: ResultSuccess},
		ID:         req.ID,
	})
}

func intakeFailure(err error) (int, string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, admission.ErrNotFound):
		return http.StatusUnprocessableEntity, msgNoAdmission
	case errors.Is(err, notification.ErrNotConfigured):
		return http.StatusInternalServerError, msgMailNotReady
	default:
		return http.StatusInternalServerError, msgIntakeInternal
	}
}

// Transition handles PATCH /preauth/:id/status.
func (h *Handler) Transition(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, errorResult("Request ID is required"))
	}

	var in TransitionInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResult("Invalid request body"))
	}
	in.ID = id
	if user := auth.UserIDFromContext(ctx); user != "" {
		in.ActorID = &user
	}

	row, err := h.svc.Transition(ctx, in)
	if err != nil {
		status, msg := transitionFailure(err)
		zerolog.Ctx(ctx).Error().Err(err).Int64("request_id", id).Str("status", string(in.Status)).Msg("pre-auth transition failed")
		return c.JSON(status, errorResult(msg))
	}
	return c.JSON(http.StatusOK, transitionResponse{
		FormResult: FormResult{Message: msgUpdated, Type: ResultSuccess},
		History:    row,
	})
}

func transitionFailure(err error) (int, string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgUpdateFailed
	}
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("request_id", id).Msg("load pre-auth request")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load request")
	}
	return c.JSON(http.StatusOK, detail)
}

var listFilterKeys = []string{"status", "hospital_id", "patient_id", "tpa_id", "company_id", "admission_id", "name"}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	filters := make(map[string]string)
	for _, k := range listFilterKeys {
		if v := c.QueryParam(k); v != "" {
			filters[k] = v
		}
	}
	items, total, err := h.svc.List(ctx, filters, pg.Limit, pg.Offset)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list pre-auth requests")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list requests")
	}
	if items == nil {
		items = []*PreAuthRequest{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Statuses(c echo.Context) error {
	return c.JSON(http.StatusOK, KnownStatuses())
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("request_id", id).Msg("delete pre-auth request")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete request")
	}
	return c.NoContent(http.StatusNoContent)
}
