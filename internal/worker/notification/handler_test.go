package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/cache"
	"github.com/Additional-Code/parcel/internal/config"
	"github.com/Additional-Code/parcel/internal/mail"
	"github.com/Additional-Code/parcel/internal/messaging"
	"github.com/Additional-Code/parcel/internal/notification"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []mail.Message
	failures int
	attempts int
	err      error
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("smtp 421 try again")
	}
	r.sent = append(r.sent, msg)
	return nil
}

type mapCache map[string][]byte

func (m mapCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapCache) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func testParams(sender mail.Sender, store cache.Store) Params {
	return Params{
		Sender: sender,
		Cache:  store,
		Config: config.Config{
			Messaging: config.Messaging{Kafka: config.Kafka{Topic: "deliveries.notifications"}},
			Notification: config.Notification{
				From:    "Parcel <no-reply@parcel.test>",
				SentTTL: time.Hour,
				Retry: config.Retry{
					InitialInterval: time.Millisecond,
					MaxInterval:     5 * time.Millisecond,
					MaxElapsedTime:  time.Second,
					Multiplier:      2,
				},
			},
		},
		Logger: zap.NewNop(),
	}
}

func envelope(t *testing.T, kind notification.Kind, payload any) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(notification.Envelope{Kind: kind, Payload: raw, EnqueuedAt: time.Now()})
	require.NoError(t, err)
	return messaging.Message{Topic: "deliveries.notifications", Value: value}
}

func cancellation() notification.CancellationJob {
	return notification.CancellationJob{
		OrderID:       12,
		Product:       "Camera",
		CourierName:   "Ana Lima",
		CourierEmail:  "ana@parcel.test",
		RecipientName: "Carla Souza",
		Street:        "Rua das Flores",
		Number:        "42",
		Complement:    "apt 3",
		City:          "Recife",
		State:         "PE",
		Zip:           "50000000",
		CanceledAt:    time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestHandler_Cancellation(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	store := mapCache{}
	h := NewHandler(testParams(sender, store))

	require.NoError(t, h.Handle(ctx, envelope(t, notification.KindCancellation, cancellation())))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, `"Ana Lima" <ana@parcel.test>`, msg.To)
	assert.Equal(t, CancellationSubject, msg.Subject)
	assert.Contains(t, msg.Body, "order #12 (Camera)")
	assert.Contains(t, msg.Body, "Rua das Flores, 42 (apt 3)")
	assert.Contains(t, msg.Body, "Recife - PE, 50000000")
	assert.Contains(t, store, "notifications:cancellation:12")

	t.Run("redelivery is deduplicated", func(t *testing.T) {
		require.NoError(t, h.Handle(ctx, envelope(t, notification.KindCancellation, cancellation())))
		assert.Len(t, sender.sent, 1)
	})
}

func TestHandler_RetriesTransientFailures(t *testing.T) {
	sender := &recordingSender{failures: 2}
	h := NewHandler(testParams(sender, mapCache{}))

	err := h.Handle(context.Background(), envelope(t, notification.KindCancellation, cancellation()))

	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestHandler_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed envelope is permanent", func(t *testing.T) {
		h := NewHandler(testParams(&recordingSender{}, mapCache{}))
		err := h.Handle(ctx, messaging.Message{Value: []byte("{")})
		require.Error(t, err)
		assert.True(t, messaging.IsPermanent(err))
	})

	t.Run("unknown kinds are acknowledged", func(t *testing.T) {
		sender := &recordingSender{}
		h := NewHandler(testParams(sender, mapCache{}))
		err := h.Handle(ctx, envelope(t, notification.Kind("sms"), map[string]string{"to": "x"}))
		require.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("exhausted retries leave the job unmarked", func(t *testing.T) {
		store := mapCache{}
		p := testParams(&recordingSender{failures: 1 << 20}, store)
		p.Config.Notification.Retry.MaxElapsedTime = 20 * time.Millisecond
		h := NewHandler(p)

		err := h.Handle(ctx, envelope(t, notification.KindCancellation, cancellation()))

		require.Error(t, err)
		assert.False(t, messaging.IsPermanent(err))
		assert.Empty(t, store)
	})
}

func TestHandler_InvalidAddressIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad recipient", fmt.Errorf("parse recipient %q: %w", "x", mail.ErrInvalidAddress)},
		{"bad sender", fmt.Errorf("parse sender %q: %w", "", mail.ErrInvalidAddress)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{err: tt.err}
			store := mapCache{}
			h := NewHandler(testParams(sender, store))

			err := h.Handle(context.Background(), envelope(t, notification.KindCancellation, cancellation()))

			require.Error(t, err)
			assert.ErrorIs(t, err, mail.ErrInvalidAddress)
			assert.True(t, messaging.IsPermanent(err))
			assert.Equal(t, 1, sender.attempts)
			assert.Empty(t, store)
		})
	}
}

func TestNewHandlerRegistration(t *testing.T) {
	reg := NewHandlerRegistration(testParams(&recordingSender{}, mapCache{}))

	assert.Equal(t, "deliveries.notifications", reg.Topic)
	assert.NotNil(t, reg.Handler)
}
