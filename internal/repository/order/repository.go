package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/parcel/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrStateConflict is returned when a guarded update matched no row because
	// the order left the expected state concurrently.
	ErrStateConflict = errors.New("order state changed concurrently")
)

// Filter narrows order listings.
type Filter struct {
	Product   string
	CourierID *int64
	// Delivered selects only delivered (true) or only pending (false) orders.
	Delivered       *bool
	ExcludeCanceled bool
	Limit           int
	Offset          int
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("courier.id", order.CourierID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key. Reads go to the writer so that a
// transition always validates against the latest committed state.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Where("?TableAlias.id = ?", id).Scan(ctx)
	if err := r.translate(span, err); err != nil {
		return nil, err
	}
	return order, nil
}

// GetWithParties fetches an order together with its courier and recipient.
func (r *Repository) GetWithParties(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetWithParties", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Courier").
		Relation("Recipient").
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err := r.translate(span, err); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns a page of orders, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Recipient").
		Relation("Courier").
		OrderExpr("?TableAlias.id DESC")

	if p := strings.TrimSpace(f.Product); p != "" {
		q = q.Where("LOWER(?TableAlias.product) LIKE ?", "%"+strings.ToLower(p)+"%")
	}
	if f.CourierID != nil {
		q = q.Where("?TableAlias.courier_id = ?", *f.CourierID)
	}
	if f.ExcludeCanceled {
		q = q.Where("?TableAlias.canceled_at IS NULL")
	}
	if f.Delivered != nil {
		if *f.Delivered {
			q = q.Where("?TableAlias.delivered_at IS NOT NULL")
		} else {
			q = q.Where("?TableAlias.delivered_at IS NULL")
		}
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// CountPickedUpBetween counts non-canceled orders picked up in [from, to).
func (r *Repository) CountPickedUpBetween(ctx context.Context, from, to time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountPickedUpBetween", trace.WithAttributes(
		attribute.String("window.from", from.Format(time.RFC3339)),
		attribute.String("window.to", to.Format(time.RFC3339)),
	))
	defer span.End()

	count, err := r.writer.NewSelect().
		Model((*entity.Order)(nil)).
		Where("?TableAlias.picked_up_at >= ?", from.UTC()).
		Where("?TableAlias.picked_up_at < ?", to.UTC()).
		Where("?TableAlias.canceled_at IS NULL").
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, fmt.Errorf("count pickups: %w", err)
	}
	return count, nil
}

// MarkPickedUp sets picked_up_at if the order is still untouched and owned by courierID.
func (r *Repository) MarkPickedUp(ctx context.Context, id, courierID int64, at, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkPickedUp", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("picked_up_at = ?", at.UTC()).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("courier_id = ?", courierID).
		Where("picked_up_at IS NULL").
		Where("delivered_at IS NULL").
		Where("canceled_at IS NULL").
		Exec(ctx)
	return r.checkAffected(span, res, err)
}

// MarkDelivered sets delivered_at and the signature once the order was picked up.
func (r *Repository) MarkDelivered(ctx context.Context, id, courierID int64, at time.Time, signatureID int64, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkDelivered", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("delivered_at = ?", at.UTC()).
		Set("signature_file_id = ?", signatureID).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("courier_id = ?", courierID).
		Where("picked_up_at IS NOT NULL").
		Where("delivered_at IS NULL").
		Where("canceled_at IS NULL").
		Exec(ctx)
	return r.checkAffected(span, res, err)
}

// MarkCanceled sets canceled_at unless the order already reached a terminal state.
func (r *Repository) MarkCanceled(ctx context.Context, id int64, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkCanceled", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("canceled_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("delivered_at IS NULL").
		Where("canceled_at IS NULL").
		Exec(ctx)
	return r.checkAffected(span, res, err)
}

// Reassign replaces courier, recipient and product of a non-terminal order.
func (r *Repository) Reassign(ctx context.Context, id, courierID, recipientID int64, product string, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Reassign", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("courier_id = ?", courierID).
		Set("recipient_id = ?", recipientID).
		Set("product = ?", product).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("delivered_at IS NULL").
		Where("canceled_at IS NULL").
		Exec(ctx)
	return r.checkAffected(span, res, err)
}

func (r *Repository) translate(span trace.Span, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return err
	}
	return nil
}

func (r *Repository) checkAffected(span trace.Span, res sql.Result, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if n == 0 {
		span.SetStatus(codes.Error, "state conflict")
		return ErrStateConflict
	}
	return nil
}
