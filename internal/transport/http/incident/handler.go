package incident

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/presentation/http/request"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	service "github.com/Additional-Code/parcel/internal/service/incident"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/parcel/transport/http/incident")

type incidentService interface {
	Report(ctx context.Context, orderID int64, description string) (*entity.Incident, error)
	List(ctx context.Context, orderID *int64, page dto.Page) ([]entity.Incident, int, error)
	Resolve(ctx context.Context, incidentID int64) (*entity.Order, error)
}

// Handler exposes incident endpoints over HTTP.
type Handler struct {
	svc incidentService
}

// NewHandler constructs an incident Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/orders/:order_id/incidents", h.report)
	e.GET("/orders/:order_id/incidents", h.listForOrder)
	e.GET("/incidents", h.list)
	e.DELETE("/incidents/:id/order", h.resolve)
}

type reportPayload struct {
	Description string `json:"description" validate:"required"`
}

func (h *Handler) report(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ParamID(c, "order_id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload reportPayload
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "incidents.report", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	incident, err := h.svc.Report(ctx, orderID, payload.Description)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewIncidentResponse(incident)).Build()
}

func (h *Handler) listForOrder(c echo.Context) error {
	orderID, err := request.ParamID(c, "order_id")
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	return h.render(c, &orderID)
}

func (h *Handler) list(c echo.Context) error {
	return h.render(c, nil)
}

func (h *Handler) render(c echo.Context, orderID *int64) error {
	b := response.New(c)
	page := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "incidents.list")
	defer span.End()

	incidents, total, err := h.svc.List(ctx, orderID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.IncidentResponse, 0, len(incidents))
	for i := range incidents {
		out = append(out, dto.NewIncidentResponse(&incidents[i]))
	}
	return b.WithData(out).WithPage(page, total).Build()
}

func (h *Handler) resolve(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "incidents.resolve", trace.WithAttributes(attribute.Int64("incident.id", id)))
	defer span.End()

	order, err := h.svc.Resolve(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}
