package consultation

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/consultations")
	g.POST("", h.Create, auth.RequireRole(auth.RolePatient))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.Transition)
	g.POST("/:id/rate", h.Rate)
	g.PUT("/:id/cancel", h.Cancel)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	in.PatientID = auth.UserIDFromContext(ctx)
	out, err := h.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	status := Status(strings.TrimSpace(c.QueryParam("status")))
	items, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Get(ctx, c.Param("id"), auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Transition(c echo.Context) error {
	var in TransitionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	in.ID = c.Param("id")
	in.ActorID = auth.UserIDFromContext(ctx)
	in.ActorRole = auth.RoleFromContext(ctx)
	out, err := h.svc.Transition(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

type rateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (h *Handler) Rate(c echo.Context) error {
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be an integer between 1 and 5")
	}
	ctx := c.Request().Context()
	out, err := h.svc.Rate(ctx, c.Param("id"), auth.UserIDFromContext(ctx), req.Rating, req.Review)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Cancel(ctx, c.Param("id"), auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
