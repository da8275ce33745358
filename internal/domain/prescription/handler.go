package prescription

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
	"github.com/medilink/telehealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctorOnly := auth.RequireRole(auth.RoleDoctor)

	g := api.Group("/prescriptions")
	g.POST("", h.Create, doctorOnly)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update, doctorOnly)
	g.PUT("/:id/deactivate", h.Deactivate, doctorOnly)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	in.DoctorID = auth.UserIDFromContext(ctx)
	in.ActorRole = auth.RoleFromContext(ctx)
	p, err := h.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// List dispatches on the caller's role: patients see what they were
// prescribed, doctors see what they issued.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	actorID := auth.UserIDFromContext(ctx)

	var (
		items []*Prescription
		total int
		err   error
	)
	switch auth.RoleFromContext(ctx) {
	case auth.RolePatient:
		var isActive *bool
		if raw := strings.TrimSpace(c.QueryParam("is_active")); raw != "" {
			v, perr := strconv.ParseBool(raw)
			if perr != nil {
				return apperr.Validation("is_active must be true or false")
			}
			isActive = &v
		}
		items, total, err = h.svc.ListForPatient(ctx, actorID, isActive, pg.Limit, pg.Offset)
	case auth.RoleDoctor:
		items, total, err = h.svc.ListForDoctor(ctx, actorID, strings.TrimSpace(c.QueryParam("patient_id")), pg.Limit, pg.Offset)
	default:
		return apperr.Forbidden("role cannot list prescriptions")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, c.Param("id"), auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, c.Param("id"), auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Deactivate(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Deactivate(ctx, c.Param("id"), auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
