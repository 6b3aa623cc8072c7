package courier

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/presentation/http/request"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	service "github.com/Additional-Code/parcel/internal/service/courier"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type courierService interface {
	Create(ctx context.Context, in service.Input) (*entity.Courier, error)
	Update(ctx context.Context, id int64, in service.Input) (*entity.Courier, error)
	Get(ctx context.Context, id int64) (*entity.Courier, error)
	List(ctx context.Context, name string, page dto.Page) ([]entity.Courier, int, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes courier registry endpoints.
type Handler struct {
	svc courierService
}

// NewHandler constructs a courier Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/couriers")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	var in service.Input
	if err := c.Bind(&in); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	courier, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewCourierResponse(courier)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	page := request.Page(c)
	couriers, total, err := h.svc.List(c.Request().Context(), c.QueryParam("q"), page)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.CourierResponse, 0, len(couriers))
	for i := range couriers {
		out = append(out, dto.NewCourierResponse(&couriers[i]))
	}
	return b.WithData(out).WithPage(page, total).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	courier, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCourierResponse(courier)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var in service.Input
	if err := c.Bind(&in); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	courier, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCourierResponse(courier)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return response.New(c).WithError(err).Build()
	}
	return c.NoContent(http.StatusNoContent)
}
