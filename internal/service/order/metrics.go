package order

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

type counters struct {
	pickups         metric.Int64Counter
	completions     metric.Int64Counter
	cancellations   metric.Int64Counter
	quotaRejections metric.Int64Counter
}

func newCounters(logger *zap.Logger) counters {
	meter := otel.Meter("github.com/Additional-Code/parcel/service/order")
	build := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			if logger != nil {
				logger.Warn("register counter", zap.String("name", name), zap.Error(err))
			}
			return noop.Int64Counter{}
		}
		return c
	}
	return counters{
		pickups:         build("deliveries.pickups", "Orders picked up by couriers"),
		completions:     build("deliveries.completions", "Orders delivered with a signature"),
		cancellations:   build("deliveries.cancellations", "Orders canceled"),
		quotaRejections: build("deliveries.quota_rejections", "Pickups refused by the daily cap"),
	}
}
