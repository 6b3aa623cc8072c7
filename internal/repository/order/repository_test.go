package order_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/repository/order"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func newRepository(t *testing.T) (*order.Repository, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*entity.StoredFile)(nil),
		(*entity.Courier)(nil),
		(*entity.Recipient)(nil),
		(*entity.Order)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	return order.NewRepository(&database.Connections{Writer: db, Reader: db}), db
}

func seedOrder(t *testing.T, repo *order.Repository, courierID int64, product string) *entity.Order {
	t.Helper()

	o := &entity.Order{
		CourierID:   courierID,
		RecipientID: 1,
		Product:     product,
		CreatedAt:   day,
		UpdatedAt:   day,
	}
	require.NoError(t, repo.Create(context.Background(), o))
	require.NotZero(t, o.ID)
	return o
}

func TestRepository_GetByID(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	created := seedOrder(t, repo, 3, "Widget")

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Product)
	assert.Equal(t, int64(3), got.CourierID)
	assert.Nil(t, got.PickedUpAt)

	_, err = repo.GetByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestRepository_MarkPickedUp(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	o := seedOrder(t, repo, 1, "Widget")
	at := day.Add(9 * time.Hour)

	t.Run("should reject a different courier", func(t *testing.T) {
		err := repo.MarkPickedUp(ctx, o.ID, 2, at, at)
		assert.ErrorIs(t, err, order.ErrStateConflict)
	})

	t.Run("should set the pickup once", func(t *testing.T) {
		require.NoError(t, repo.MarkPickedUp(ctx, o.ID, 1, at, at))

		got, err := repo.GetByID(ctx, o.ID)
		require.NoError(t, err)
		require.NotNil(t, got.PickedUpAt)
		assert.True(t, got.PickedUpAt.Equal(at))
	})

	t.Run("should not reset an existing pickup", func(t *testing.T) {
		err := repo.MarkPickedUp(ctx, o.ID, 1, at.Add(time.Hour), at.Add(time.Hour))
		assert.ErrorIs(t, err, order.ErrStateConflict)
	})
}

func TestRepository_TerminalStatesAreExclusive(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	at := day.Add(9 * time.Hour)

	delivered := seedOrder(t, repo, 1, "Delivered")
	require.NoError(t, repo.MarkPickedUp(ctx, delivered.ID, 1, at, at))
	require.NoError(t, repo.MarkDelivered(ctx, delivered.ID, 1, at.Add(time.Hour), 42, at.Add(time.Hour)))
	assert.ErrorIs(t, repo.MarkCanceled(ctx, delivered.ID, at.Add(2*time.Hour)), order.ErrStateConflict)
	assert.ErrorIs(t, repo.MarkDelivered(ctx, delivered.ID, 1, at.Add(2*time.Hour), 42, at), order.ErrStateConflict)

	canceled := seedOrder(t, repo, 1, "Canceled")
	require.NoError(t, repo.MarkPickedUp(ctx, canceled.ID, 1, at, at))
	require.NoError(t, repo.MarkCanceled(ctx, canceled.ID, at.Add(time.Hour)))
	assert.ErrorIs(t, repo.MarkDelivered(ctx, canceled.ID, 1, at.Add(2*time.Hour), 42, at), order.ErrStateConflict)
	assert.ErrorIs(t, repo.MarkCanceled(ctx, canceled.ID, at.Add(2*time.Hour)), order.ErrStateConflict)

	got, err := repo.GetByID(ctx, delivered.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SignatureFileID)
	assert.Equal(t, int64(42), *got.SignatureFileID)
	assert.Nil(t, got.CanceledAt)
}

func TestRepository_MarkDeliveredRequiresPickup(t *testing.T) {
	repo, _ := newRepository(t)
	o := seedOrder(t, repo, 1, "Widget")

	err := repo.MarkDelivered(context.Background(), o.ID, 1, day, 1, day)
	assert.ErrorIs(t, err, order.ErrStateConflict)
}

func TestRepository_CountPickedUpBetween(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o := seedOrder(t, repo, 1, "same day")
		require.NoError(t, repo.MarkPickedUp(ctx, o.ID, 1, day.Add(time.Duration(8+i)*time.Hour), day))
	}
	canceled := seedOrder(t, repo, 1, "canceled same day")
	require.NoError(t, repo.MarkPickedUp(ctx, canceled.ID, 1, day.Add(10*time.Hour), day))
	require.NoError(t, repo.MarkCanceled(ctx, canceled.ID, day.Add(11*time.Hour)))

	nextDay := seedOrder(t, repo, 2, "next day")
	require.NoError(t, repo.MarkPickedUp(ctx, nextDay.ID, 2, day.Add(24*time.Hour), day))
	seedOrder(t, repo, 1, "never picked up")

	count, err := repo.CountPickedUpBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountPickedUpBetween(ctx, day.Add(24*time.Hour), day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_Reassign(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()
	o := seedOrder(t, repo, 1, "Widget")

	require.NoError(t, repo.Reassign(ctx, o.ID, 5, 6, "Gadget", day))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.CourierID)
	assert.Equal(t, int64(6), got.RecipientID)
	assert.Equal(t, "Gadget", got.Product)

	require.NoError(t, repo.MarkCanceled(ctx, o.ID, day))
	assert.ErrorIs(t, repo.Reassign(ctx, o.ID, 1, 1, "Widget", day), order.ErrStateConflict)
}
