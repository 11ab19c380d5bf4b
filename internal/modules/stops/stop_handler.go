package stops

import (
	"errors"
	"net/http"

	"freight-ops/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for stop lifecycle operations.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate // For request body validation
}

// NewHandler creates a new stop handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts all stop lifecycle routes on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/orders/:orderId/stops", h.GetRouteOverview)
	g.GET("/stops/:stopId", h.GetStopDetail)
	g.POST("/stops/:stopId/advance", h.AdvanceStop)
	g.POST("/stops/:stopId/arrive", h.MarkArrived)
	g.POST("/stops/:stopId/depart", h.MarkDeparted)
}

func (h *Handler) GetRouteOverview(c echo.Context) error {
	orderID := c.Param("orderId")

	overview, err := h.svc.GetRouteOverview(c.Request().Context(), orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		c.Logger().Error("Handler.GetRouteOverview: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve route overview"})
	}

	return c.JSON(http.StatusOK, overview)
}

func (h *Handler) GetStopDetail(c echo.Context) error {
	stopID := c.Param("stopId")

	detail, err := h.svc.GetStopDetail(c.Request().Context(), stopID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Stop not found"})
		}
		c.Logger().Error("Handler.GetStopDetail: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve stop"})
	}

	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) AdvanceStop(c echo.Context) error {
	stopID := c.Param("stopId")

	var req models.AdvanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.Advance(c.Request().Context(), stopID, req.TargetStatus); err != nil {
		return h.transitionError(c, "Handler.AdvanceStop", err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) MarkArrived(c echo.Context) error {
	stopID := c.Param("stopId")

	if err := h.svc.MarkArrived(c.Request().Context(), stopID); err != nil {
		return h.transitionError(c, "Handler.MarkArrived", err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) MarkDeparted(c echo.Context) error {
	stopID := c.Param("stopId")

	if err := h.svc.MarkDeparted(c.Request().Context(), stopID); err != nil {
		return h.transitionError(c, "Handler.MarkDeparted", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// transitionError maps dispatcher errors onto HTTP status codes. Local
// refusals (terminal status, wrong target, bad route) are client errors;
// only upstream mutation failures surface as 502.
func (h *Handler) transitionError(c echo.Context, op string, err error) error {
	var routeErr *models.RouteConfigError
	var seqErr *models.SequenceError

	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Stop not found"})
	case errors.Is(err, models.ErrTransitionInFlight):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "A transition for this stop is already in progress"})
	case errors.Is(err, models.ErrNoNextAction), errors.Is(err, models.ErrIllegalTransition):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
	case errors.As(err, &routeErr), errors.As(err, &seqErr), errors.Is(err, models.ErrRouteNotConfigured):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
	default:
		c.Logger().Error(op+": ", err)
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: "Failed to update stop status"})
	}
}
