package courier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/entity"
	repo "github.com/Additional-Code/parcel/internal/repository/courier"
	filerepo "github.com/Additional-Code/parcel/internal/repository/file"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type fakeCouriers struct {
	rows  map[int64]*entity.Courier
	inUse map[int64]bool
	err   error
}

func (f *fakeCouriers) Create(_ context.Context, c *entity.Courier) error {
	c.ID = int64(len(f.rows) + 1)
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCouriers) Update(_ context.Context, c *entity.Courier) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCouriers) GetByID(_ context.Context, id int64) (*entity.Courier, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouriers) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	for id, c := range f.rows {
		if c.Email == email && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCouriers) List(context.Context, repo.Filter) ([]entity.Courier, int, error) {
	return nil, 0, nil
}

func (f *fakeCouriers) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.rows[id]; !ok {
		return repo.ErrNotFound
	}
	if f.inUse[id] {
		return repo.ErrInUse
	}
	delete(f.rows, id)
	return nil
}

type fakeFiles map[int64]bool

func (f fakeFiles) GetByID(_ context.Context, id int64) (*entity.StoredFile, error) {
	if !f[id] {
		return nil, filerepo.ErrNotFound
	}
	return &entity.StoredFile{ID: id}, nil
}

func newTestService() (*Service, *fakeCouriers) {
	store := &fakeCouriers{rows: map[int64]*entity.Courier{}, inUse: map[int64]bool{}}
	return &Service{
		couriers: store,
		files:    fakeFiles{5: true},
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		logger:   zap.NewNop(),
	}, store
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	avatar := int64(5)
	missingAvatar := int64(6)

	t.Run("should normalize and store", func(t *testing.T) {
		svc, _ := newTestService()

		c, err := svc.Create(ctx, Input{Name: " Ana Lima ", Email: " Ana@Parcel.Test", AvatarFileID: &avatar})

		require.NoError(t, err)
		assert.Equal(t, "Ana Lima", c.Name)
		assert.Equal(t, "ana@parcel.test", c.Email)
	})

	tests := []struct {
		name string
		in   Input
		want errorbank.Kind
	}{
		{"short name", Input{Name: "Al", Email: "al@parcel.test"}, errorbank.KindValidation},
		{"bad email", Input{Name: "Alice", Email: "alice"}, errorbank.KindValidation},
		{"duplicate email", Input{Name: "Another Ana", Email: "ANA@parcel.test"}, errorbank.KindConflict},
		{"missing avatar", Input{Name: "Bruno", Email: "bruno@parcel.test", AvatarFileID: &missingAvatar}, errorbank.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			_, err := svc.Create(ctx, Input{Name: "Ana Lima", Email: "ana@parcel.test"})
			require.NoError(t, err)

			_, err = svc.Create(ctx, tt.in)

			assert.True(t, errorbank.Is(err, tt.want), "got %v", err)
			assert.Len(t, store.rows, 1)
		})
	}
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	ana, err := svc.Create(ctx, Input{Name: "Ana Lima", Email: "ana@parcel.test"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{Name: "Bruno Reis", Email: "bruno@parcel.test"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, ana.ID, Input{Name: "Ana L. Souza", Email: "ana@parcel.test"})
	require.NoError(t, err)
	assert.Equal(t, "Ana L. Souza", updated.Name)

	_, err = svc.Update(ctx, ana.ID, Input{Name: "Ana Lima", Email: "bruno@parcel.test"})
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))

	_, err = svc.Update(ctx, 404, Input{Name: "Nobody", Email: "nobody@parcel.test"})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		id        int64
		inUse     bool
		storeErr  error
		want      errorbank.Kind
		remaining int
	}{
		{name: "should delete an unassigned courier", id: 1, remaining: 0},
		{name: "should reject a courier with orders", id: 1, inUse: true, want: errorbank.KindConflict, remaining: 1},
		{name: "should report a missing courier", id: 9, want: errorbank.KindNotFound, remaining: 1},
		{name: "should wrap store failures", id: 1, storeErr: errors.New("db down"), want: errorbank.KindInternal, remaining: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			ana, err := svc.Create(ctx, Input{Name: "Ana Lima", Email: "ana@parcel.test"})
			require.NoError(t, err)
			store.inUse[ana.ID] = tt.inUse
			store.err = tt.storeErr

			err = svc.Delete(ctx, tt.id)

			if tt.want == "" {
				require.NoError(t, err)
			} else {
				assert.True(t, errorbank.Is(err, tt.want), "got %v", err)
			}
			assert.Len(t, store.rows, tt.remaining)
		})
	}
}
