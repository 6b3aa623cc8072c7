package delivery

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/presentation/http/request"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	service "github.com/Additional-Code/parcel/internal/service/order"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/parcel/transport/http/delivery")

type deliveryService interface {
	Deliveries(ctx context.Context, courierID int64, delivered *bool, page dto.Page) ([]entity.Order, int, error)
	RecordPickup(ctx context.Context, orderID, courierID int64, at time.Time) (*entity.Order, error)
	RecordCompletion(ctx context.Context, orderID, courierID int64, at time.Time, signatureFileID int64) (*entity.Order, error)
}

// Handler exposes the courier-facing delivery endpoints.
type Handler struct {
	svc deliveryService
}

// NewHandler constructs a delivery Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/couriers/:courier_id/deliveries")
	g.GET("", h.list)
	g.PUT("/:order_id/pickup", h.pickup)
	g.PUT("/:order_id/complete", h.complete)
}

type pickupPayload struct {
	PickedUpAt *time.Time `json:"picked_up_at" validate:"required"`
}

type completePayload struct {
	DeliveredAt *time.Time `json:"delivered_at" validate:"required"`
	SignatureID int64      `json:"signature_id" validate:"required,gt=0"`
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	courierID, err := request.ParamID(c, "courier_id")
	if err != nil {
		return b.WithError(err).Build()
	}
	delivered, err := request.OptionalBool(c, "delivered")
	if err != nil {
		return b.WithError(err).Build()
	}
	page := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "deliveries.list", trace.WithAttributes(attribute.Int64("courier.id", courierID)))
	defer span.End()

	orders, total, err := h.svc.Deliveries(ctx, courierID, delivered, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).WithPage(page, total).Build()
}

func (h *Handler) pickup(c echo.Context) error {
	b := response.New(c)

	courierID, orderID, err := ids(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload pickupPayload
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliveries.pickup", trace.WithAttributes(
		attribute.Int64("courier.id", courierID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := h.svc.RecordPickup(ctx, orderID, courierID, *payload.PickedUpAt)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) complete(c echo.Context) error {
	b := response.New(c)

	courierID, orderID, err := ids(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload completePayload
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliveries.complete", trace.WithAttributes(
		attribute.Int64("courier.id", courierID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := h.svc.RecordCompletion(ctx, orderID, courierID, *payload.DeliveredAt, payload.SignatureID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func ids(c echo.Context) (courierID, orderID int64, err error) {
	if courierID, err = request.ParamID(c, "courier_id"); err != nil {
		return 0, 0, err
	}
	if orderID, err = request.ParamID(c, "order_id"); err != nil {
		return 0, 0, err
	}
	return courierID, orderID, nil
}
