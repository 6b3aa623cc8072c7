package seeder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/database"
	"github.com/Additional-Code/parcel/internal/entity"
)

// Module provides the Seeder for the seed command.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	clock  clockwork.Clock
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, clock clockwork.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, clock: clock, logger: logger}
}

// Run seeds files, couriers and recipients, then one open order per courier.
// Parties are matched on their natural keys so the command can be repeated.
func (s *Seeder) Run(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		couriers, err := s.couriers(ctx, tx)
		if err != nil {
			return err
		}
		recipients, err := s.recipients(ctx, tx)
		if err != nil {
			return err
		}
		return s.orders(ctx, tx, couriers, recipients)
	})
}

func (s *Seeder) couriers(ctx context.Context, tx bun.Tx) ([]entity.Courier, error) {
	now := s.clock.Now().UTC()
	avatar := entity.StoredFile{Name: "avatar.png", Path: "seed/avatar.png", CreatedAt: now, UpdatedAt: now}
	if err := ensure(ctx, tx, &avatar, "path = ?", avatar.Path); err != nil {
		return nil, fmt.Errorf("seed avatar: %w", err)
	}

	samples := []entity.Courier{
		{Name: "Ana Souza", Email: "ana@parcel.local", AvatarFileID: &avatar.ID},
		{Name: "Bruno Lima", Email: "bruno@parcel.local"},
	}
	for i := range samples {
		samples[i].CreatedAt, samples[i].UpdatedAt = now, now
		if err := ensure(ctx, tx, &samples[i], "email = ?", samples[i].Email); err != nil {
			return nil, fmt.Errorf("seed courier %s: %w", samples[i].Email, err)
		}
	}

	s.logger.Info("seeded couriers", zap.Int("count", len(samples)))
	return samples, nil
}

func (s *Seeder) recipients(ctx context.Context, tx bun.Tx) ([]entity.Recipient, error) {
	now := s.clock.Now().UTC()
	samples := []entity.Recipient{
		{Name: "Carla Dias", Street: "Rua Augusta", Number: "1500", City: "Sao Paulo", State: "SP", Zip: "01304001"},
		{Name: "Davi Rocha", Street: "Avenida Atlantica", Number: "200", Complement: "apt 31", City: "Rio de Janeiro", State: "RJ", Zip: "22021001"},
	}
	for i := range samples {
		samples[i].CreatedAt, samples[i].UpdatedAt = now, now
		if err := ensure(ctx, tx, &samples[i], "name = ? AND zip = ?", samples[i].Name, samples[i].Zip); err != nil {
			return nil, fmt.Errorf("seed recipient: %w", err)
		}
	}

	s.logger.Info("seeded recipients", zap.Int("count", len(samples)))
	return samples, nil
}

// ensure loads the row matching where into model, inserting model when none exists.
func ensure(ctx context.Context, tx bun.Tx, model any, where string, args ...any) error {
	err := tx.NewSelect().Model(model).Where(where, args...).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.NewInsert().Model(model).Exec(ctx)
	}
	return err
}

// orders gives each courier an assigned order unless it already has one.
func (s *Seeder) orders(ctx context.Context, tx bun.Tx, couriers []entity.Courier, recipients []entity.Recipient) error {
	now := s.clock.Now().UTC()
	created := 0
	for i, courier := range couriers {
		exists, err := tx.NewSelect().Model((*entity.Order)(nil)).
			Where("courier_id = ?", courier.ID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check orders: %w", err)
		}
		if exists {
			continue
		}

		order := entity.Order{
			CourierID:   courier.ID,
			RecipientID: recipients[i%len(recipients)].ID,
			Product:     fmt.Sprintf("Sample parcel %d", i+1),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return fmt.Errorf("seed order: %w", err)
		}
		created++
	}

	s.logger.Info("seeded orders", zap.Int("count", created))
	return nil
}
