package courier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/parcel/repository/courier")

// ErrNotFound is returned when a courier is missing.
var ErrNotFound = errors.New("courier not found")

// ErrInUse is returned when orders still reference the courier.
var ErrInUse = errors.New("courier is referenced by orders")

// Filter narrows courier listings.
type Filter struct {
	Name   string
	Limit  int
	Offset int
}

// Repository encapsulates read/write access for couriers.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new courier.
func (r *Repository) Create(ctx context.Context, courier *entity.Courier) error {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.Create")
	defer span.End()

	if _, err := r.writer.NewInsert().Model(courier).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update writes the mutable courier columns.
func (r *Repository) Update(ctx context.Context, courier *entity.Courier) error {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.Update", trace.WithAttributes(attribute.Int64("courier.id", courier.ID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model(courier).
		Column("name", "email", "avatar_file_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// GetByID fetches a courier by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Courier, error) {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.GetByID", trace.WithAttributes(attribute.Int64("courier.id", id)))
	defer span.End()

	courier := new(entity.Courier)
	err := r.reader.NewSelect().Model(courier).Relation("Avatar").Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return courier, nil
}

// EmailTaken reports whether another courier already uses email.
func (r *Repository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	q := r.writer.NewSelect().
		Model((*entity.Courier)(nil)).
		Where("LOWER(?TableAlias.email) = ?", strings.ToLower(email))
	if exceptID > 0 {
		q = q.Where("?TableAlias.id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

// List returns a page of couriers, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Courier, int, error) {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.List")
	defer span.End()

	var couriers []entity.Courier
	q := r.reader.NewSelect().Model(&couriers).Relation("Avatar").OrderExpr("?TableAlias.id DESC")
	if n := strings.TrimSpace(f.Name); n != "" {
		q = q.Where("LOWER(?TableAlias.name) LIKE ?", "%"+strings.ToLower(n)+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, fmt.Errorf("list couriers: %w", err)
	}
	return couriers, total, nil
}

// Delete removes a courier that no order references. Orders keep their parties
// for history, so any reference blocks the delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.Delete", trace.WithAttributes(attribute.Int64("courier.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		referenced, err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			Where("?TableAlias.courier_id = ?", id).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check courier orders: %w", err)
		}
		if referenced {
			return ErrInUse
		}

		res, err := tx.NewDelete().
			Model((*entity.Courier)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete courier: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInUse) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
