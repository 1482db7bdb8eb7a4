package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/pkg/pagination"
)

type Handler struct {
	svc    *Service
	tokens *auth.TokenIssuer
	// loginLimit guards /token-auth. Nil disables it.
	loginLimit echo.MiddlewareFunc
}

func NewHandler(svc *Service, tokens *auth.TokenIssuer, loginLimit echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, tokens: tokens, loginLimit: loginLimit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public.
	api.POST("/users/register-patient", h.RegisterPatient)
	api.POST("/users/register-doctor", h.RegisterDoctor)
	if h.loginLimit != nil {
		api.POST("/token-auth", h.TokenAuth, h.loginLimit)
	} else {
		api.POST("/token-auth", h.TokenAuth)
	}

	anyRole := auth.RequireRole(auth.RolePatient, auth.RoleDoctor)
	doctorOnly := auth.RequireRole(auth.RoleDoctor)

	users := api.Group("/users", anyRole)
	users.GET("/me", h.Me)
	users.GET("", h.ListAccounts, doctorOnly)
	users.GET("/:id", h.GetAccount)
	users.PUT("/:id", h.UpdateAccount)
	users.DELETE("/:id", h.DeleteAccount)

	patients := api.Group("/patients", anyRole)
	patients.GET("", h.ListPatients)
	patients.GET("/for-doctor-dashboard", h.Dashboard, doctorOnly)
	patients.GET("/summary-counts", h.SummaryCounts, doctorOnly)
	patients.GET("/:id", h.GetPatient)
	patients.PUT("/:id", h.UpdatePatient)
	patients.GET("/:id/risk-report", h.RiskReport)

	doctors := api.Group("/doctors", doctorOnly)
	doctors.GET("", h.ListDoctors)
	doctors.GET("/:id", h.GetDoctor)
	doctors.PUT("/:id", h.UpdateDoctor)
}

func viewerFrom(c echo.Context) (Viewer, error) {
	ctx := c.Request().Context()
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return Viewer{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return Viewer{AccountID: id, Role: Role(auth.RoleFromContext(ctx))}, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(v)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var reg Registration
	if err := bindValid(c, &reg); err != nil {
		return err
	}
	a, err := h.svc.RegisterPatient(c.Request().Context(), reg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var reg Registration
	if err := bindValid(c, &reg); err != nil {
		return err
	}
	a, err := h.svc.RegisterDoctor(c.Request().Context(), reg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// Credentials is the token-auth payload. Login is an email or a username.
type Credentials struct {
	Login    string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserType  Role      `json:"user_type"`
}

func (h *Handler) TokenAuth(c echo.Context) error {
	var in Credentials
	if err := bindValid(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Authenticate(c.Request().Context(), in.Login, in.Password)
	if err != nil {
		return httpError(err)
	}
	token, exp, err := h.tokens.Issue(a.ID, string(a.Role))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, UserType: a.Role})
}

func (h *Handler) Me(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	me, err := h.svc.Me(c.Request().Context(), viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, me)
}

func (h *Handler) ListAccounts(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAccounts(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Account{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetAccount(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAccount(c.Request().Context(), viewer, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAccount(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var upd AccountUpdate
	if err := bindValid(c, &upd); err != nil {
		return err
	}
	a, err := h.svc.UpdateAccount(c.Request().Context(), viewer, id, upd)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAccount(c.Request().Context(), viewer, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), viewer, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*PatientProfile{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetPatient(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), viewer, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Measurements
	if err := bindValid(c, &m); err != nil {
		return err
	}
	p, err := h.svc.UpdateMeasurements(c.Request().Context(), viewer, id, m)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RiskReport(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.RiskReport(c.Request().Context(), viewer, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Dashboard(c echo.Context) error {
	pg := pagination.FromContext(c)
	rows, total, err := h.svc.Dashboard(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) SummaryCounts(c echo.Context) error {
	sum, err := h.svc.SummaryCounts(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

// ListDoctors returns the caller's own profile as a one-item page.
func (h *Handler) ListDoctors(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	d, err := h.svc.GetDoctor(c.Request().Context(), viewer, viewer.AccountID)
	if err != nil {
		return httpError(err)
	}
	items := []*DoctorProfile{d}
	if pg.Offset > 0 {
		items = []*DoctorProfile{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, 1, pg))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), viewer, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type doctorUpdate struct {
	Specialization *string `json:"specialization" validate:"omitempty,max=100"`
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in doctorUpdate
	if err := bindValid(c, &in); err != nil {
		return err
	}
	d, err := h.svc.UpdateSpecialization(c.Request().Context(), viewer, id, in.Specialization)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to perform this action")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "a user with that username or email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
