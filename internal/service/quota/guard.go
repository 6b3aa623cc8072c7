package quota

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/config"
	orderrepo "github.com/Additional-Code/parcel/internal/repository/order"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

var guardTracer = otel.Tracer("github.com/Additional-Code/parcel/service/quota")

// Module provides the pickup quota guard to Fx.
var Module = fx.Provide(NewGuard)

// Counter counts non-canceled pickups in a half-open time window.
type Counter interface {
	CountPickedUpBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Params defines dependencies for constructing Guard.
type Params struct {
	fx.In

	Orders *orderrepo.Repository
	Config config.Config
	Logger *zap.Logger
}

// Guard caps how many orders may be picked up per calendar day, system-wide.
//
// The count and the subsequent pickup write are not atomic, so concurrent
// pickups near the cap can overshoot it.
type Guard struct {
	orders   Counter
	limit    int
	location *time.Location
	logger   *zap.Logger
}

// NewGuard wires a Guard from configuration.
func NewGuard(p Params) *Guard {
	return New(p.Orders, p.Config.Delivery.DailyPickupLimit, p.Config.Delivery.Location, p.Logger)
}

// New builds a Guard over any pickup counter. A nil loc means UTC.
func New(orders Counter, limit int, loc *time.Location, logger *zap.Logger) *Guard {
	if loc == nil {
		loc = time.UTC
	}
	return &Guard{orders: orders, limit: limit, location: loc, logger: logger}
}

// Limit returns the daily cap.
func (g *Guard) Limit() int {
	return g.limit
}

// Window returns the [start, end) bounds of the reference day containing at.
func (g *Guard) Window(at time.Time) (time.Time, time.Time) {
	local := at.In(g.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.location)
	return start, start.AddDate(0, 0, 1)
}

// Check fails with QuotaExceeded when the day of at already holds limit pickups.
func (g *Guard) Check(ctx context.Context, at time.Time) error {
	start, end := g.Window(at)
	ctx, span := guardTracer.Start(ctx, "QuotaGuard.Check", trace.WithAttributes(
		attribute.String("quota.day", start.Format(time.DateOnly)),
		attribute.Int("quota.limit", g.limit),
	))
	defer span.End()

	count, err := g.orders.CountPickedUpBetween(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to count daily pickups", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int("quota.count", count))

	if count >= g.limit {
		g.logger.Info("daily pickup limit reached",
			zap.String("day", start.Format(time.DateOnly)),
			zap.Int("count", count),
			zap.Int("limit", g.limit),
		)
		return errorbank.QuotaExceeded("daily pickup limit reached",
			errorbank.WithDetail("day", start.Format(time.DateOnly)),
			errorbank.WithDetail("limit", g.limit),
		)
	}
	return nil
}
