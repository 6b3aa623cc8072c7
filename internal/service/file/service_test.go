package file

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/parcel/internal/entity"
	repo "github.com/Additional-Code/parcel/internal/repository/file"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type fakeFiles struct {
	rows []entity.StoredFile
}

func (f *fakeFiles) Create(_ context.Context, file *entity.StoredFile) error {
	file.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *file)
	return nil
}

func (f *fakeFiles) GetByID(_ context.Context, id int64) (*entity.StoredFile, error) {
	for _, file := range f.rows {
		if file.ID == id {
			cp := file
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func TestService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{files: &fakeFiles{}, clock: clockwork.NewFakeClockAt(now)}

	registered, err := svc.Register(ctx, Input{Name: "signature.png", Path: " signatures/42.png "})
	require.NoError(t, err)
	assert.Equal(t, "signatures/42.png", registered.Path)
	assert.True(t, registered.CreatedAt.Equal(now))

	got, err := svc.Get(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "signature.png", got.Name)

	_, err = svc.Register(ctx, Input{Name: "", Path: "x"})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	_, err = svc.Get(ctx, 77)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}
