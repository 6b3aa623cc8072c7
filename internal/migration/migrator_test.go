package migration

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/db/migrations"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

func TestGooseDialect(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "postgres", want: "postgres"},
		{driver: "pg", want: "postgres"},
		{driver: "mysql", want: "mysql"},
		{driver: "sqlite", want: "sqlite3"},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := gooseDialect(tt.driver)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.FS, migrationsDir+"/*.sql")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"sql/00001_create_files.sql",
		"sql/00002_create_couriers.sql",
		"sql/00003_create_recipients.sql",
		"sql/00004_create_orders.sql",
		"sql/00005_create_delivery_incidents.sql",
	}, names)
}

func TestMigrator_SQLiteModels(t *testing.T) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{Database: config.Database{Driver: "sqlite"}}
	m, err := New(cfg, &database.Connections{Writer: db, Reader: db}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "second run is a no-op")

	count, err := db.NewSelect().Model((*entity.Incident)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, m.Down(ctx, 1, false))
	_, err = db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	assert.Error(t, err)
}
