package incident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/parcel/repository/incident")

// ErrNotFound is returned when an incident is missing.
var ErrNotFound = errors.New("incident not found")

// Filter narrows incident listings; a nil OrderID lists every incident.
type Filter struct {
	OrderID *int64
	Limit   int
	Offset  int
}

// Repository encapsulates read/write access for delivery incidents.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new incident.
func (r *Repository) Create(ctx context.Context, incident *entity.Incident) error {
	ctx, span := repoTracer.Start(ctx, "IncidentRepository.Create", trace.WithAttributes(attribute.Int64("order.id", incident.OrderID)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(incident).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID fetches an incident by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Incident, error) {
	ctx, span := repoTracer.Start(ctx, "IncidentRepository.GetByID", trace.WithAttributes(attribute.Int64("incident.id", id)))
	defer span.End()

	incident := new(entity.Incident)
	err := r.writer.NewSelect().Model(incident).Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return incident, nil
}

// List returns a page of incidents with their order and recipient.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Incident, int, error) {
	ctx, span := repoTracer.Start(ctx, "IncidentRepository.List")
	defer span.End()

	var incidents []entity.Incident
	q := r.reader.NewSelect().
		Model(&incidents).
		Relation("Order").
		Relation("Order.Recipient").
		OrderExpr("?TableAlias.id DESC")
	if f.OrderID != nil {
		q = q.Where("?TableAlias.order_id = ?", *f.OrderID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, total, nil
}
