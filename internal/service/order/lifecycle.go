package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/notification"
	filerepo "github.com/Additional-Code/parcel/internal/repository/file"
	repo "github.com/Additional-Code/parcel/internal/repository/order"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

// RecordPickup marks an order as collected by its assigned courier.
func (s *Service) RecordPickup(ctx context.Context, orderID, courierID int64, at time.Time) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RecordPickup", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("courier.id", courierID),
	))
	defer span.End()

	order, err := s.loadOrder(ctx, span, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadCourier(ctx, courierID); err != nil {
		return nil, err
	}
	if !order.AssignedTo(courierID) {
		return nil, errorbank.Forbidden("order is assigned to another courier")
	}
	if err := terminalError(order); err != nil {
		return nil, err
	}
	if order.PickedUpAt != nil {
		return nil, errorbank.InvalidState("order was already picked up",
			errorbank.WithDetail("picked_up_at", order.PickedUpAt.UTC()))
	}

	now := s.clock.Now().UTC()
	if at.After(now) {
		return nil, errorbank.InvalidTemporal("pickup time cannot be in the future")
	}
	if err := s.quota.Check(ctx, at); err != nil {
		if errorbank.Is(err, errorbank.KindQuotaExceeded) {
			s.metrics.quotaRejections.Add(ctx, 1)
		}
		return nil, err
	}

	if err := s.orders.MarkPickedUp(ctx, orderID, courierID, at, now); err != nil {
		return nil, s.transitionError(ctx, span, orderID, courierID, err)
	}
	s.evict(ctx, orderID)
	s.metrics.pickups.Add(ctx, 1)

	pickedUp := at.UTC()
	order.PickedUpAt = &pickedUp
	order.UpdatedAt = now
	return order, nil
}

// RecordCompletion marks a picked-up order as delivered with a signature.
func (s *Service) RecordCompletion(ctx context.Context, orderID, courierID int64, at time.Time, signatureFileID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RecordCompletion", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("courier.id", courierID),
	))
	defer span.End()

	order, err := s.loadOrder(ctx, span, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadCourier(ctx, courierID); err != nil {
		return nil, err
	}
	if !order.AssignedTo(courierID) {
		return nil, errorbank.Forbidden("order is assigned to another courier")
	}
	if err := terminalError(order); err != nil {
		return nil, err
	}
	if order.PickedUpAt == nil {
		return nil, errorbank.PreconditionFailed("order has not been picked up")
	}

	if _, err := s.files.GetByID(ctx, signatureFileID); err != nil {
		if errors.Is(err, filerepo.ErrNotFound) {
			return nil, errorbank.InvalidSignature("signature file not found",
				errorbank.WithDetail("signature_id", signatureFileID))
		}
		return nil, errorbank.Internal("failed to load signature file", errorbank.WithCause(err))
	}

	now := s.clock.Now().UTC()
	if at.Before(*order.PickedUpAt) {
		return nil, errorbank.InvalidTemporal("delivery time cannot precede pickup",
			errorbank.WithDetail("picked_up_at", order.PickedUpAt.UTC()))
	}
	if at.After(now) {
		return nil, errorbank.InvalidTemporal("delivery time cannot be in the future")
	}

	if err := s.orders.MarkDelivered(ctx, orderID, courierID, at, signatureFileID, now); err != nil {
		return nil, s.transitionError(ctx, span, orderID, courierID, err)
	}
	s.evict(ctx, orderID)
	s.metrics.completions.Add(ctx, 1)

	delivered := at.UTC()
	order.DeliveredAt = &delivered
	order.SignatureFileID = &signatureFileID
	order.UpdatedAt = now
	return order, nil
}

// Cancel soft-cancels an open order and enqueues the courier notification.
// Enqueue failures are logged and never undo the cancellation.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetWithParties(ctx, orderID)
	if err != nil {
		return nil, s.orderError(span, err)
	}
	if err := terminalError(order); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.orders.MarkCanceled(ctx, orderID, now); err != nil {
		return nil, s.transitionError(ctx, span, orderID, 0, err)
	}
	s.evict(ctx, orderID)
	s.metrics.cancellations.Add(ctx, 1)

	order.CanceledAt = &now
	order.UpdatedAt = now

	if err := s.dispatcher.Enqueue(ctx, notification.KindCancellation, cancellationJob(order)); err != nil {
		span.RecordError(err)
		s.logger.Error("enqueue cancellation notification",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}
	return order, nil
}

func cancellationJob(order *entity.Order) notification.CancellationJob {
	job := notification.CancellationJob{
		OrderID: order.ID,
		Product: order.Product,
	}
	if order.CanceledAt != nil {
		job.CanceledAt = *order.CanceledAt
	}
	if c := order.Courier; c != nil {
		job.CourierName = c.Name
		job.CourierEmail = c.Email
	}
	if r := order.Recipient; r != nil {
		job.RecipientName = r.Name
		job.Street = r.Street
		job.Number = r.Number
		job.Complement = r.Complement
		job.City = r.City
		job.State = r.State
		job.Zip = r.Zip
	}
	return job
}

// terminalError reports the Already* error for delivered or canceled orders.
func terminalError(order *entity.Order) error {
	switch order.State() {
	case entity.OrderCanceled:
		return errorbank.AlreadyCanceled("order was canceled",
			errorbank.WithDetail("canceled_at", order.CanceledAt.UTC()))
	case entity.OrderDelivered:
		return errorbank.AlreadyDelivered("order was already delivered",
			errorbank.WithDetail("delivered_at", order.DeliveredAt.UTC()))
	default:
		return nil
	}
}

// transitionError classifies a failed guarded update. When another writer won
// the race the order is re-read so the caller sees the state that beat it.
func (s *Service) transitionError(ctx context.Context, span trace.Span, orderID, courierID int64, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("order not found")
	}
	if !errors.Is(err, repo.ErrStateConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	current, loadErr := s.loadOrder(ctx, span, orderID)
	if loadErr != nil {
		return loadErr
	}
	s.evict(ctx, orderID)
	if courierID != 0 && !current.AssignedTo(courierID) {
		return errorbank.Forbidden("order is assigned to another courier")
	}
	if termErr := terminalError(current); termErr != nil {
		return termErr
	}
	return errorbank.InvalidState("order changed concurrently", errorbank.WithDetail("state", string(current.State())))
}
