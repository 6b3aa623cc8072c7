package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/config"
)

// Message represents a notification job consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Outbound is a message to publish. Trace context is added to Headers on send.
type Outbound struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes an inbound message. A failing message is retried until
// the handler succeeds, unless the error is wrapped with Permanent.
type Handler func(context.Context, Message) error

// Permanent marks err as not worth retrying. The consumer logs it and moves on.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Outbound) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled. Published messages are dropped.
type noopClient struct {
	topic  string
	logger *zap.Logger
}

func (n noopClient) Publish(_ context.Context, msg Outbound) error {
	n.logger.Debug("messaging disabled; message dropped", zap.ByteString("key", msg.Key))
	return nil
}
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

// kafkaReader is the subset of *kafka.Reader the consumer loop uses.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer     *kafka.Writer
	reader     kafkaReader
	topic      string
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// handlerBackOff retries a failing message until it succeeds or the consumer stops.
func handlerBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	)
}

func (k *kafkaClient) Publish(ctx context.Context, out Outbound) error {
	return k.writer.WriteMessages(ctx, toKafka(ctx, out))
}

// toKafka converts out into a kafka message, injecting the caller's trace context.
func toKafka(ctx context.Context, out Outbound) kafka.Message {
	carrier := propagation.MapCarrier{}
	for key, val := range out.Headers {
		carrier[key] = val
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{Key: out.Key, Value: out.Value}
	for _, key := range carrier.Keys() {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(carrier[key])})
	}
	return msg
}

// fromKafka copies msg out of the reader's buffers.
func fromKafka(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			time.Sleep(time.Second)
			continue
		}

		// A message is committed only after its handler succeeds, so the
		// partition offset never moves past an unprocessed job.
		if err := k.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// handle runs handler on msg, retrying with backoff until it succeeds.
// It returns only the context error when the consumer is stopped mid-retry.
func (k *kafkaClient) handle(ctx context.Context, msg kafka.Message, handler Handler) error {
	wrapped := fromKafka(msg)
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(wrapped.Headers))

	newBackOff := k.newBackOff
	if newBackOff == nil {
		newBackOff = handlerBackOff
	}

	op := func() error { return handler(msgCtx, wrapped) }
	notify := func(err error, wait time.Duration) {
		k.logger.Error("message handler failed; retrying",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", wait),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(newBackOff(), ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Permanent handler errors are logged and skipped.
		k.logger.Error("message handler gave up", zap.Error(err), zap.Int64("offset", msg.Offset))
	}
	return nil
}

func (k *kafkaClient) Topic() string { return k.topic }

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topic: cfg.Messaging.Kafka.Topic, logger: logger}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:        cfg.Messaging.Kafka.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          topic,
		MinBytes:       cfg.Messaging.Kafka.MinBytes,
		MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
		CommitInterval: cfg.Messaging.Kafka.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
			ClientID: cfg.Messaging.Kafka.ClientID,
		},
	}

	reader := kafka.NewReader(readerConfig)

	client := &kafkaClient{writer: writer, reader: reader, topic: topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")

			if err := writer.Close(); err != nil {
				return err
			}
			return reader.Close()
		},
	})

	return client, nil
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)

}
