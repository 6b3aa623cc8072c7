package recipient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	repo "github.com/Additional-Code/parcel/internal/repository/recipient"
	"github.com/Additional-Code/parcel/pkg/errorbank"
	"github.com/Additional-Code/parcel/pkg/validation"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/parcel/service/recipient")

type recipientStore interface {
	Create(ctx context.Context, recipient *entity.Recipient) error
	Update(ctx context.Context, recipient *entity.Recipient) error
	GetByID(ctx context.Context, id int64) (*entity.Recipient, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Recipient, int, error)
	Delete(ctx context.Context, id int64) error
}

// Service manages recipients and their addresses.
type Service struct {
	recipients recipientStore
	clock      clockwork.Clock
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Recipients *repo.Repository
	Clock      clockwork.Clock
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{recipients: p.Recipients, clock: p.Clock}
}

// Input carries the writable recipient fields.
type Input struct {
	Name       string `json:"name" validate:"required,min=3"`
	Street     string `json:"street" validate:"required"`
	Number     string `json:"number" validate:"required"`
	Complement string `json:"complement"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required,len=2,alpha"`
	Zip        string `json:"zip" validate:"required,len=8,numeric"`
}

// Create registers a recipient.
func (s *Service) Create(ctx context.Context, in Input) (*entity.Recipient, error) {
	ctx, span := serviceTracer.Start(ctx, "RecipientService.Create")
	defer span.End()

	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	recipient := &entity.Recipient{CreatedAt: now}
	apply(recipient, in, now)
	if err := s.recipients.Create(ctx, recipient); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create recipient", errorbank.WithCause(err))
	}
	return recipient, nil
}

// Update replaces the writable fields of an existing recipient.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*entity.Recipient, error) {
	ctx, span := serviceTracer.Start(ctx, "RecipientService.Update", trace.WithAttributes(attribute.Int64("recipient.id", id)))
	defer span.End()

	recipient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	apply(recipient, in, s.clock.Now().UTC())
	if err := s.recipients.Update(ctx, recipient); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update recipient", errorbank.WithCause(err))
	}
	return recipient, nil
}

// Get retrieves a recipient.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Recipient, error) {
	recipient, err := s.recipients.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("recipient not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load recipient", errorbank.WithCause(err))
	}
	return recipient, nil
}

// List returns recipients whose name contains name, newest first.
func (s *Service) List(ctx context.Context, name string, page dto.Page) ([]entity.Recipient, int, error) {
	recipients, total, err := s.recipients.List(ctx, repo.Filter{Name: name, Limit: page.Limit(), Offset: page.Offset()})
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list recipients", errorbank.WithCause(err))
	}
	return recipients, total, nil
}

// Delete removes a recipient no order is addressed to.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "RecipientService.Delete", trace.WithAttributes(attribute.Int64("recipient.id", id)))
	defer span.End()

	err := s.recipients.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("recipient not found")
	case errors.Is(err, repo.ErrInUse):
		return errorbank.Conflict("recipient has orders", errorbank.WithDetail("recipient_id", id))
	default:
		span.RecordError(err)
		return errorbank.Internal("failed to delete recipient", errorbank.WithCause(err))
	}
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Street = strings.TrimSpace(in.Street)
	in.Number = strings.TrimSpace(in.Number)
	in.Complement = strings.TrimSpace(in.Complement)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.Zip = strings.NewReplacer("-", "", " ", "").Replace(in.Zip)
	return in
}

func apply(r *entity.Recipient, in Input, now time.Time) {
	r.Name = in.Name
	r.Street = in.Street
	r.Number = in.Number
	r.Complement = in.Complement
	r.City = in.City
	r.State = in.State
	r.Zip = in.Zip
	r.UpdatedAt = now
}
