package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/messaging"
)

var dispatchTracer = otel.Tracer("github.com/Additional-Code/parcel/notification")

// Module provides the notification dispatcher to Fx.
var Module = fx.Provide(NewDispatcher)

// Params defines dependencies for constructing Dispatcher.
type Params struct {
	fx.In

	Publisher messaging.Client
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// Dispatcher enqueues notification jobs onto the message bus. Delivery is
// at-least-once; consumers must tolerate duplicates.
type Dispatcher struct {
	publisher messaging.Client
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{publisher: p.Publisher, clock: p.Clock, logger: p.Logger}
}

// Enqueue publishes a job of the given kind. It does not wait for the job to run.
func (d *Dispatcher) Enqueue(ctx context.Context, kind Kind, payload any) error {
	ctx, span := dispatchTracer.Start(ctx, "Dispatcher.Enqueue", trace.WithAttributes(attribute.String("job.kind", string(kind))))
	defer span.End()

	raw, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode payload")
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	body, err := json.Marshal(Envelope{Kind: kind, Payload: raw, EnqueuedAt: d.clock.Now().UTC()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode envelope")
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}

	key := string(kind)
	if k, ok := payload.(Keyed); ok {
		key = fmt.Sprintf("%s-%s", kind, k.JobKey())
	}

	msg := messaging.Outbound{
		Key:     []byte(key),
		Value:   body,
		Headers: map[string]string{HeaderKind: string(kind)},
	}
	if err := d.publisher.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("publish %s job: %w", kind, err)
	}

	d.logger.Debug("notification enqueued", zap.String("kind", string(kind)), zap.String("key", key))
	return nil
}
