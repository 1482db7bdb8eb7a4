package screening

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the screening routes. Events have no update or
// delete routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/screenings", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.GET("", h.ListEvents)
	read.GET("/:id", h.GetEvent)

	write := api.Group("/screenings", auth.RequireRole(auth.RoleDoctor))
	write.POST("", h.CreateAssessment)
	write.POST("/new-assessment", h.CreateAssessment)
}

// patientScope returns the caller's own id for patients and nil for doctors.
func patientScope(c echo.Context) (*uuid.UUID, error) {
	ctx := c.Request().Context()
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	switch auth.RoleFromContext(ctx) {
	case auth.RoleDoctor:
		return nil, nil
	case auth.RolePatient:
		return &id, nil
	default:
		return nil, echo.NewHTTPError(http.StatusForbidden, "unknown role")
	}
}

func (h *Handler) CreateAssessment(c echo.Context) error {
	doctorID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var in Assessment
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return err
	}

	e, err := h.svc.RecordAssessment(c.Request().Context(), doctorID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, err := patientScope(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEvent(c.Request().Context(), scope, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEvents(c echo.Context) error {
	scope, err := patientScope(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEvents(c.Request().Context(), scope, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Event{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "screening event not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, ErrPatientNotFound.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
