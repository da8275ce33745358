package identity

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medilink/telehealth/internal/platform/auth"
	"github.com/medilink/telehealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints on the /api group. Register,
// login and the doctor directory are public; the auth skipper lets them
// through.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/doctors/available", h.ListAvailableDoctors)

	api.GET("/auth/me", h.Me)
	api.PUT("/auth/profile", h.UpdateProfile)
	api.PUT("/doctor/availability", h.SetAvailability, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Login(c.Request().Context(), req.Phone, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var u ProfileUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.UpdateProfile(ctx, auth.UserIDFromContext(ctx), u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *Handler) SetAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil || req.Available == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "available must be true or false")
	}
	ctx := c.Request().Context()
	a, err := h.svc.SetAvailability(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), *req.Available)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAvailableDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := DoctorFilter{
		Specialization: strings.TrimSpace(c.QueryParam("specialization")),
		Language:       strings.TrimSpace(c.QueryParam("language")),
	}
	doctors, total, err := h.svc.ListAvailableDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg))
}
