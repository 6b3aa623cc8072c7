package courier

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	repo "github.com/Additional-Code/parcel/internal/repository/courier"
	filerepo "github.com/Additional-Code/parcel/internal/repository/file"
	"github.com/Additional-Code/parcel/pkg/errorbank"
	"github.com/Additional-Code/parcel/pkg/validation"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/parcel/service/courier")

type courierStore interface {
	Create(ctx context.Context, courier *entity.Courier) error
	Update(ctx context.Context, courier *entity.Courier) error
	GetByID(ctx context.Context, id int64) (*entity.Courier, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Courier, int, error)
	Delete(ctx context.Context, id int64) error
}

type fileLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.StoredFile, error)
}

// Service manages the courier registry.
type Service struct {
	couriers courierStore
	files    fileLookup
	clock    clockwork.Clock
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Couriers *repo.Repository
	Files    *filerepo.Repository
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{couriers: p.Couriers, files: p.Files, clock: p.Clock, logger: p.Logger}
}

// Input carries the writable courier fields.
type Input struct {
	Name         string `json:"name" validate:"required,min=3"`
	Email        string `json:"email" validate:"required,email"`
	AvatarFileID *int64 `json:"avatar_id"`
}

// Create registers a courier with a unique email.
func (s *Service) Create(ctx context.Context, in Input) (*entity.Courier, error) {
	ctx, span := serviceTracer.Start(ctx, "CourierService.Create")
	defer span.End()

	in = normalize(in)
	if err := s.check(ctx, in, 0); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	courier := &entity.Courier{
		Name:         in.Name,
		Email:        in.Email,
		AvatarFileID: in.AvatarFileID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.couriers.Create(ctx, courier); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create courier", errorbank.WithCause(err))
	}
	s.logger.Info("courier registered", zap.Int64("courier_id", courier.ID))
	return courier, nil
}

// Update replaces the writable fields of an existing courier.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*entity.Courier, error) {
	ctx, span := serviceTracer.Start(ctx, "CourierService.Update", trace.WithAttributes(attribute.Int64("courier.id", id)))
	defer span.End()

	courier, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalize(in)
	if err := s.check(ctx, in, id); err != nil {
		return nil, err
	}

	courier.Name = in.Name
	courier.Email = in.Email
	courier.AvatarFileID = in.AvatarFileID
	courier.Avatar = nil
	courier.UpdatedAt = s.clock.Now().UTC()
	if err := s.couriers.Update(ctx, courier); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update courier", errorbank.WithCause(err))
	}
	return courier, nil
}

// Get retrieves a courier with its avatar.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Courier, error) {
	courier, err := s.couriers.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("courier not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load courier", errorbank.WithCause(err))
	}
	return courier, nil
}

// List returns couriers whose name contains name, newest first.
func (s *Service) List(ctx context.Context, name string, page dto.Page) ([]entity.Courier, int, error) {
	couriers, total, err := s.couriers.List(ctx, repo.Filter{Name: name, Limit: page.Limit(), Offset: page.Offset()})
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list couriers", errorbank.WithCause(err))
	}
	return couriers, total, nil
}

// Delete removes a courier that has never been assigned an order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CourierService.Delete", trace.WithAttributes(attribute.Int64("courier.id", id)))
	defer span.End()

	err := s.couriers.Delete(ctx, id)
	switch {
	case err == nil:
		s.logger.Info("courier removed", zap.Int64("courier_id", id))
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("courier not found")
	case errors.Is(err, repo.ErrInUse):
		return errorbank.Conflict("courier has orders", errorbank.WithDetail("courier_id", id))
	default:
		span.RecordError(err)
		return errorbank.Internal("failed to delete courier", errorbank.WithCause(err))
	}
}

func (s *Service) check(ctx context.Context, in Input, exceptID int64) error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	taken, err := s.couriers.EmailTaken(ctx, in.Email, exceptID)
	if err != nil {
		return errorbank.Internal("failed to check courier email", errorbank.WithCause(err))
	}
	if taken {
		return errorbank.Conflict("email already in use", errorbank.WithDetail("field", "email"))
	}

	if in.AvatarFileID != nil {
		if _, err := s.files.GetByID(ctx, *in.AvatarFileID); err != nil {
			if errors.Is(err, filerepo.ErrNotFound) {
				return errorbank.NotFound("avatar file not found")
			}
			return errorbank.Internal("failed to load avatar file", errorbank.WithCause(err))
		}
	}
	return nil
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}
