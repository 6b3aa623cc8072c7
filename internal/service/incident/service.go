package incident

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	incidentrepo "github.com/Additional-Code/parcel/internal/repository/incident"
	orderrepo "github.com/Additional-Code/parcel/internal/repository/order"
	ordersvc "github.com/Additional-Code/parcel/internal/service/order"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/parcel/service/incident")

type incidentStore interface {
	Create(ctx context.Context, incident *entity.Incident) error
	GetByID(ctx context.Context, id int64) (*entity.Incident, error)
	List(ctx context.Context, f incidentrepo.Filter) ([]entity.Incident, int, error)
}

type orderReader interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

type canceler interface {
	Cancel(ctx context.Context, orderID int64) (*entity.Order, error)
}

// Service records delivery incidents and resolves them by canceling the order.
type Service struct {
	incidents incidentStore
	orders    orderReader
	engine    canceler
	minLength int
	clock     clockwork.Clock
	logger    *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Incidents *incidentrepo.Repository
	Orders    *orderrepo.Repository
	Engine    *ordersvc.Service
	Config    config.Config
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		incidents: p.Incidents,
		orders:    p.Orders,
		engine:    p.Engine,
		minLength: p.Config.Delivery.IncidentMinLength,
		clock:     p.Clock,
		logger:    p.Logger,
	}
}

// Report files an incident against an order that has not been delivered.
func (s *Service) Report(ctx context.Context, orderID int64, description string) (*entity.Incident, error) {
	ctx, span := serviceTracer.Start(ctx, "IncidentService.Report", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" || utf8.RuneCountInString(description) < s.minLength {
		return nil, errorbank.Validation("description is too short",
			errorbank.WithDetail("field", "description"),
			errorbank.WithDetail("min", s.minLength),
		)
	}

	order, err := s.loadOrder(ctx, span, orderID)
	if err != nil {
		return nil, err
	}
	if order.DeliveredAt != nil {
		return nil, errorbank.AlreadyDelivered("order was already delivered")
	}

	incident := &entity.Incident{
		OrderID:     orderID,
		Description: description,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.incidents.Create(ctx, incident); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to record incident", errorbank.WithCause(err))
	}

	s.logger.Info("delivery incident reported", zap.Int64("order_id", orderID), zap.Int64("incident_id", incident.ID))
	return incident, nil
}

// List returns incidents, optionally scoped to one order.
func (s *Service) List(ctx context.Context, orderID *int64, page dto.Page) ([]entity.Incident, int, error) {
	ctx, span := serviceTracer.Start(ctx, "IncidentService.List")
	defer span.End()

	if orderID != nil {
		if _, err := s.loadOrder(ctx, span, *orderID); err != nil {
			return nil, 0, err
		}
	}

	incidents, total, err := s.incidents.List(ctx, incidentrepo.Filter{
		OrderID: orderID,
		Limit:   page.Limit(),
		Offset:  page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, errorbank.Internal("failed to list incidents", errorbank.WithCause(err))
	}
	return incidents, total, nil
}

// Resolve cancels the order an incident was filed against. The incident itself
// is left untouched.
func (s *Service) Resolve(ctx context.Context, incidentID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "IncidentService.Resolve", trace.WithAttributes(attribute.Int64("incident.id", incidentID)))
	defer span.End()

	incident, err := s.incidents.GetByID(ctx, incidentID)
	if errors.Is(err, incidentrepo.ErrNotFound) {
		return nil, errorbank.NotFound("incident not found")
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load incident", errorbank.WithCause(err))
	}

	order, err := s.loadOrder(ctx, span, incident.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CanceledAt != nil {
		return nil, errorbank.AlreadyCanceled("order was already canceled")
	}

	canceled, err := s.engine.Cancel(ctx, incident.OrderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery incident resolved",
		zap.Int64("incident_id", incidentID),
		zap.Int64("order_id", incident.OrderID),
	)
	return canceled, nil
}

func (s *Service) loadOrder(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}
