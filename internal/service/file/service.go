package file

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/Additional-Code/parcel/internal/entity"
	repo "github.com/Additional-Code/parcel/internal/repository/file"
	"github.com/Additional-Code/parcel/pkg/errorbank"
	"github.com/Additional-Code/parcel/pkg/validation"
)

type fileStore interface {
	Create(ctx context.Context, file *entity.StoredFile) error
	GetByID(ctx context.Context, id int64) (*entity.StoredFile, error)
}

// Service registers metadata for stored files such as signatures and avatars.
type Service struct {
	files fileStore
	clock clockwork.Clock
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Files *repo.Repository
	Clock clockwork.Clock
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{files: p.Files, clock: p.Clock}
}

// Input names an already stored object.
type Input struct {
	Name string `json:"name" validate:"required"`
	Path string `json:"path" validate:"required"`
}

// Register records a stored file.
func (s *Service) Register(ctx context.Context, in Input) (*entity.StoredFile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Path = strings.TrimSpace(in.Path)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	file := &entity.StoredFile{Name: in.Name, Path: in.Path, CreatedAt: now, UpdatedAt: now}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, errorbank.Internal("failed to register file", errorbank.WithCause(err))
	}
	return file, nil
}

// Get retrieves file metadata.
func (s *Service) Get(ctx context.Context, id int64) (*entity.StoredFile, error) {
	file, err := s.files.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("file not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load file", errorbank.WithCause(err))
	}
	return file, nil
}
