package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// queryHook logs failed and slow statements. Missing rows are not failures.
type queryHook struct {
	logger *zap.Logger
	pool   string
	slow   time.Duration
}

var _ bun.QueryHook = (*queryHook)(nil)

func newQueryHook(logger *zap.Logger, pool string, slow time.Duration) *queryHook {
	return &queryHook{logger: logger, pool: pool, slow: slow}
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("pool", h.pool),
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.String("query", event.Query), zap.Error(event.Err))...)
	case h.slow > 0 && elapsed >= h.slow:
		h.logger.Warn("slow query", append(fields, zap.String("query", event.Query))...)
	default:
		h.logger.Debug("query", fields...)
	}
}
