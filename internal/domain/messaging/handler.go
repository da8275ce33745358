package messaging

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medilink/telehealth/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat", h.Send)
	api.GET("/chat/:consultationId", h.History)
	api.PUT("/chat/:consultationId/read", h.MarkRead)
}

func (h *Handler) Send(c echo.Context) error {
	var in SendInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	in.SenderID = auth.UserIDFromContext(ctx)
	m, err := h.svc.Send(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()
	msgs, err := h.svc.History(ctx, c.Param("consultationId"), auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.MarkRead(ctx, c.Param("consultationId"), auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}
