package order

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/cache"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/notification"
	courierrepo "github.com/Additional-Code/parcel/internal/repository/courier"
	filerepo "github.com/Additional-Code/parcel/internal/repository/file"
	repo "github.com/Additional-Code/parcel/internal/repository/order"
	recipientrepo "github.com/Additional-Code/parcel/internal/repository/recipient"
	"github.com/Additional-Code/parcel/internal/service/quota"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/parcel/service/order")

type orderStore interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetWithParties(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Order, int, error)
	MarkPickedUp(ctx context.Context, id, courierID int64, at, now time.Time) error
	MarkDelivered(ctx context.Context, id, courierID int64, at time.Time, signatureID int64, now time.Time) error
	MarkCanceled(ctx context.Context, id int64, at time.Time) error
	Reassign(ctx context.Context, id, courierID, recipientID int64, product string, now time.Time) error
}

type courierLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.Courier, error)
}

type recipientLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.Recipient, error)
}

type fileLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.StoredFile, error)
}

type pickupQuota interface {
	Check(ctx context.Context, at time.Time) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, kind notification.Kind, payload any) error
}

// Service is the delivery lifecycle engine. It owns every order state transition.
type Service struct {
	orders     orderStore
	couriers   courierLookup
	recipients recipientLookup
	files      fileLookup
	quota      pickupQuota
	dispatcher jobEnqueuer
	cache      cache.Store
	cacheTTL   time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    counters
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders     *repo.Repository
	Couriers   *courierrepo.Repository
	Recipients *recipientrepo.Repository
	Files      *filerepo.Repository
	Quota      *quota.Guard
	Dispatcher *notification.Dispatcher
	Cache      cache.Store
	Config     config.Config
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:     p.Orders,
		couriers:   p.Couriers,
		recipients: p.Recipients,
		files:      p.Files,
		quota:      p.Quota,
		dispatcher: p.Dispatcher,
		cache:      cache.Namespace(p.Cache, cache.NamespaceOrders),
		cacheTTL:   p.Config.Cache.DefaultTTL,
		clock:      p.Clock,
		logger:     p.Logger,
		metrics:    newCounters(p.Logger),
	}
}

// CreateInput carries the fields of a new order.
type CreateInput struct {
	Product     string
	CourierID   int64
	RecipientID int64
}

// ReassignInput carries an administrative correction. An empty Product keeps
// the current one.
type ReassignInput struct {
	CourierID   int64
	RecipientID int64
	Product     string
}

// ListFilter narrows order listings.
type ListFilter struct {
	Product string
	Page    dto.Page
}

// Create persists a new order already assigned to a courier.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("courier.id", in.CourierID),
		attribute.Int64("recipient.id", in.RecipientID),
	))
	defer span.End()

	product := strings.TrimSpace(in.Product)
	if product == "" {
		return nil, errorbank.Validation("product is required", errorbank.WithDetail("field", "product"))
	}
	if _, err := s.loadCourier(ctx, in.CourierID); err != nil {
		return nil, err
	}
	if _, err := s.loadRecipient(ctx, in.RecipientID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	order := &entity.Order{
		Product:     product,
		CourierID:   in.CourierID,
		RecipientID: in.RecipientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	return order, nil
}

// Get retrieves an order with its courier and recipient, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetWithParties(ctx, id)
	if err != nil {
		return nil, s.orderError(span, err)
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// List returns a page of orders, newest first, with the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]entity.Order, int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, total, err := s.orders.List(ctx, repo.Filter{
		Product: f.Product,
		Limit:   f.Page.Limit(),
		Offset:  f.Page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, total, nil
}

// Deliveries lists a courier's non-canceled orders. A nil delivered returns both
// pending and delivered ones.
func (s *Service) Deliveries(ctx context.Context, courierID int64, delivered *bool, page dto.Page) ([]entity.Order, int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Deliveries", trace.WithAttributes(attribute.Int64("courier.id", courierID)))
	defer span.End()

	if _, err := s.loadCourier(ctx, courierID); err != nil {
		return nil, 0, err
	}

	orders, total, err := s.orders.List(ctx, repo.Filter{
		CourierID:       &courierID,
		Delivered:       delivered,
		ExcludeCanceled: true,
		Limit:           page.Limit(),
		Offset:          page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, errorbank.Internal("failed to list deliveries", errorbank.WithCause(err))
	}
	return orders, total, nil
}

// Reassign replaces courier, recipient and optionally product of an open order.
// Lifecycle timestamps are left untouched.
func (s *Service) Reassign(ctx context.Context, id int64, in ReassignInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reassign", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.loadOrder(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadCourier(ctx, in.CourierID); err != nil {
		return nil, err
	}
	if _, err := s.loadRecipient(ctx, in.RecipientID); err != nil {
		return nil, err
	}
	if err := terminalError(order); err != nil {
		return nil, err
	}

	product := strings.TrimSpace(in.Product)
	if product == "" {
		product = order.Product
	}

	now := s.clock.Now().UTC()
	if err := s.orders.Reassign(ctx, id, in.CourierID, in.RecipientID, product, now); err != nil {
		return nil, s.transitionError(ctx, span, id, 0, err)
	}
	s.evict(ctx, id)

	order.CourierID = in.CourierID
	order.RecipientID = in.RecipientID
	order.Product = product
	order.UpdatedAt = now
	return order, nil
}

func (s *Service) loadOrder(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.orderError(span, err)
	}
	return order, nil
}

func (s *Service) orderError(span trace.Span, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("order not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal("failed to load order", errorbank.WithCause(err))
}

func (s *Service) loadCourier(ctx context.Context, id int64) (*entity.Courier, error) {
	courier, err := s.couriers.GetByID(ctx, id)
	if errors.Is(err, courierrepo.ErrNotFound) {
		return nil, errorbank.NotFound("courier not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load courier", errorbank.WithCause(err))
	}
	return courier, nil
}

func (s *Service) loadRecipient(ctx context.Context, id int64) (*entity.Recipient, error) {
	recipient, err := s.recipients.GetByID(ctx, id)
	if errors.Is(err, recipientrepo.ErrNotFound) {
		return nil, errorbank.NotFound("recipient not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load recipient", errorbank.WithCause(err))
	}
	return recipient, nil
}

func (s *Service) cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache evict failed", zap.Int64("id", id), zap.Error(err))
	}
}
