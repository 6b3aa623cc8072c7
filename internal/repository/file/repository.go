package file

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/parcel/repository/file")

// ErrNotFound is returned when a stored file is missing.
var ErrNotFound = errors.New("file not found")

// Repository encapsulates access to stored file metadata.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists file metadata.
func (r *Repository) Create(ctx context.Context, file *entity.StoredFile) error {
	ctx, span := repoTracer.Start(ctx, "FileRepository.Create", trace.WithAttributes(attribute.String("file.path", file.Path)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(file).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID fetches file metadata by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.StoredFile, error) {
	ctx, span := repoTracer.Start(ctx, "FileRepository.GetByID", trace.WithAttributes(attribute.Int64("file.id", id)))
	defer span.End()

	file := new(entity.StoredFile)
	err := r.reader.NewSelect().Model(file).Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return file, nil
}
