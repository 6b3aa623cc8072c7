package recipient

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/presentation/http/request"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	service "github.com/Additional-Code/parcel/internal/service/recipient"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type recipientService interface {
	Create(ctx context.Context, in service.Input) (*entity.Recipient, error)
	Update(ctx context.Context, id int64, in service.Input) (*entity.Recipient, error)
	Get(ctx context.Context, id int64) (*entity.Recipient, error)
	List(ctx context.Context, name string, page dto.Page) ([]entity.Recipient, int, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes recipient endpoints.
type Handler struct {
	svc recipientService
}

// NewHandler constructs a recipient Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/recipients")
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
	recipient, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewRecipientResponse(recipient)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	page := request.Page(c)
	recipients, total, err := h.svc.List(c.Request().Context(), c.QueryParam("q"), page)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.RecipientResponse, 0, len(recipients))
	for i := range recipients {
		out = append(out, dto.NewRecipientResponse(&recipients[i]))
	}
	return b.WithData(out).WithPage(page, total).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	recipient, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewRecipientResponse(recipient)).Build()
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
	recipient, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewRecipientResponse(recipient)).Build()
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
