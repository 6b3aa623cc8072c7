package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/db/migrations"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

// migrationsDir is relative to the embedded migrations.FS.
const migrationsDir = "sql"

// Module provides the Migrator for the migrate commands.
var Module = fx.Provide(New)

// models lists the schema in dependency order for drivers without SQL migrations.
var models = []any{
	(*entity.StoredFile)(nil),
	(*entity.Courier)(nil),
	(*entity.Recipient)(nil),
	(*entity.Order)(nil),
	(*entity.Incident)(nil),
}

// Migrator applies the schema for files, couriers, recipients, orders and incidents.
// Postgres runs the goose migrations; mysql and sqlite get tables created from the bun models.
type Migrator struct {
	db     *bun.DB
	goose  bool
	logger *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	m := &Migrator{db: conns.Writer, logger: logger}
	if dialect == "postgres" {
		if err := goose.SetDialect(dialect); err != nil {
			return nil, err
		}
		goose.SetBaseFS(migrations.FS)
		m.goose = true
	}
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if !m.goose {
		return m.createTables(ctx)
	}

	if err := goose.UpContext(ctx, m.db.DB, migrationsDir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	m.logger.Info("migrations applied")

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
// Without goose every table is dropped regardless of steps.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if !m.goose {
		return m.dropTables(ctx)
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, migrationsDir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, migrationsDir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

func (m *Migrator) createTables(ctx context.Context) error {
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	m.logger.Info("tables created from models", zap.Int("count", len(models)))
	return nil
}

func (m *Migrator) dropTables(ctx context.Context) error {
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := m.db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	m.logger.Info("tables dropped", zap.Int("count", len(models)))
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
