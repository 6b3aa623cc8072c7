package file

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/presentation/http/request"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	service "github.com/Additional-Code/parcel/internal/service/file"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type fileService interface {
	Register(ctx context.Context, in service.Input) (*entity.StoredFile, error)
	Get(ctx context.Context, id int64) (*entity.StoredFile, error)
}

// Handler exposes file metadata endpoints.
type Handler struct {
	svc fileService
}

// NewHandler constructs a file Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/files", h.create)
	e.GET("/files/:id", h.get)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	var in service.Input
	if err := c.Bind(&in); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	file, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewFileResponse(file)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	file, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewFileResponse(file)).Build()
}
