package recipient

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

var repoTracer = otel.Tracer("github.com/Additional-Code/parcel/repository/recipient")

// ErrNotFound is returned when a recipient is missing.
var ErrNotFound = errors.New("recipient not found")

// ErrInUse is returned when orders still reference the recipient.
var ErrInUse = errors.New("recipient is referenced by orders")

// Filter narrows recipient listings.
type Filter struct {
	Name   string
	Limit  int
	Offset int
}

// Repository encapsulates read/write access for recipients.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new recipient.
func (r *Repository) Create(ctx context.Context, recipient *entity.Recipient) error {
	ctx, span := repoTracer.Start(ctx, "RecipientRepository.Create")
	defer span.End()

	if _, err := r.writer.NewInsert().Model(recipient).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update writes every mutable recipient column.
func (r *Repository) Update(ctx context.Context, recipient *entity.Recipient) error {
	ctx, span := repoTracer.Start(ctx, "RecipientRepository.Update", trace.WithAttributes(attribute.Int64("recipient.id", recipient.ID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model(recipient).
		Column("name", "street", "number", "complement", "city", "state", "zip", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// GetByID fetches a recipient by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Recipient, error) {
	ctx, span := repoTracer.Start(ctx, "RecipientRepository.GetByID", trace.WithAttributes(attribute.Int64("recipient.id", id)))
	defer span.End()

	recipient := new(entity.Recipient)
	err := r.reader.NewSelect().Model(recipient).Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return recipient, nil
}

// List returns a page of recipients and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Recipient, int, error) {
	ctx, span := repoTracer.Start(ctx, "RecipientRepository.List")
	defer span.End()

	var recipients []entity.Recipient
	q := r.reader.NewSelect().Model(&recipients).OrderExpr("?TableAlias.id DESC")
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
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, total, nil
}

// Delete removes a recipient that no order references. Orders keep their parties
// for history, so any reference blocks the delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "RecipientRepository.Delete", trace.WithAttributes(attribute.Int64("recipient.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		referenced, err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			Where("?TableAlias.recipient_id = ?", id).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check recipient orders: %w", err)
		}
		if referenced {
			return ErrInUse
		}

		res, err := tx.NewDelete().
			Model((*entity.Recipient)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete recipient: %w", err)
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
