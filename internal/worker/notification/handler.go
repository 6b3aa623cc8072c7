package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	netmail "net/mail"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/cache"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/mail"
	"github.com/Additional-Code/parcel/internal/messaging"
	"github.com/Additional-Code/parcel/internal/notification"
	"github.com/Additional-Code/parcel/internal/worker"
	"github.com/Additional-Code/parcel/pkg/retrier"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/parcel/worker/notification")

// CancellationSubject is the subject line of cancellation emails.
const CancellationSubject = "Delivery canceled"

var cancellationBody = template.Must(template.New("cancellation").Parse(`Hello {{.CourierName}},

The delivery of order #{{.OrderID}} ({{.Product}}) was canceled on {{.CanceledAt.Format "2006-01-02 15:04 MST"}}.

Recipient: {{.RecipientName}}
Address: {{.Street}}, {{.Number}}{{with .Complement}} ({{.}}){{end}}
{{.City}} - {{.State}}, {{.Zip}}

Please do not attempt this delivery.
`))

// Module registers the notification handler with the worker engine.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewHandlerRegistration,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Params defines dependencies for the notification handler.
type Params struct {
	fx.In

	Sender mail.Sender
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// Handler turns queued notification jobs into emails.
type Handler struct {
	sender  mail.Sender
	cache   cache.Store
	retrier *retrier.Retrier
	from    string
	sentTTL time.Duration
	logger  *zap.Logger
}

// NewHandler builds a Handler from configuration.
func NewHandler(p Params) *Handler {
	retry := p.Config.Notification.Retry
	return &Handler{
		sender: p.Sender,
		cache:  cache.Namespace(p.Cache, cache.NamespaceNotifications),
		retrier: retrier.New(retrier.Config{
			InitialInterval: retry.InitialInterval,
			MaxInterval:     retry.MaxInterval,
			MaxElapsedTime:  retry.MaxElapsedTime,
			Multiplier:      retry.Multiplier,
			ShouldRetry: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, mail.ErrInvalidAddress)
			},
		}),
		from:    p.Config.Notification.From,
		sentTTL: p.Config.Notification.SentTTL,
		logger:  p.Logger,
	}
}

// NewHandlerRegistration binds the handler to the notifications topic.
func NewHandlerRegistration(p Params) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   p.Config.Messaging.Kafka.Topic,
		Handler: NewHandler(p).Handle,
	}
}

// Handle decodes one envelope and dispatches it by kind. Unknown kinds are
// acknowledged so they do not block the partition. Undecodable jobs and bad
// addresses are returned as permanent errors.
func (h *Handler) Handle(ctx context.Context, msg messaging.Message) error {
	ctx, span := workerTracer.Start(ctx, "worker.notifications.process", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	var env notification.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger.Error("failed to decode notification envelope", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return messaging.Permanent(err)
	}
	span.SetAttributes(attribute.String("job.kind", string(env.Kind)))

	switch env.Kind {
	case notification.KindCancellation:
		var job notification.CancellationJob
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			h.logger.Error("failed to decode cancellation job", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return messaging.Permanent(err)
		}
		if err := h.sendCancellation(ctx, job); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "send failed")
			return err
		}
		return nil
	default:
		h.logger.Warn("unknown notification kind", zap.String("kind", string(env.Kind)))
		return nil
	}
}

func (h *Handler) sendCancellation(ctx context.Context, job notification.CancellationJob) error {
	key := fmt.Sprintf("cancellation:%d", job.OrderID)
	if _, err := h.cache.Get(ctx, key); err == nil {
		h.logger.Debug("cancellation already notified", zap.Int64("order_id", job.OrderID))
		return nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn("notification dedupe read failed", zap.String("key", key), zap.Error(err))
	}

	var body bytes.Buffer
	if err := cancellationBody.Execute(&body, job); err != nil {
		return fmt.Errorf("render cancellation email: %w", err)
	}
	msg := mail.Message{
		From:    h.from,
		To:      (&netmail.Address{Name: job.CourierName, Address: job.CourierEmail}).String(),
		Subject: CancellationSubject,
		Body:    body.String(),
	}

	if err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.sender.Send(ctx, msg)
	}); err != nil {
		err = fmt.Errorf("send cancellation for order %d: %w", job.OrderID, err)
		if errors.Is(err, mail.ErrInvalidAddress) {
			return messaging.Permanent(err)
		}
		return err
	}

	if err := h.cache.Set(ctx, key, []byte(job.CanceledAt.UTC().Format(time.RFC3339)), h.sentTTL); err != nil {
		h.logger.Warn("notification dedupe write failed", zap.String("key", key), zap.Error(err))
	}
	h.logger.Info("cancellation notified",
		zap.Int64("order_id", job.OrderID),
		zap.String("courier_email", job.CourierEmail),
	)
	return nil
}
