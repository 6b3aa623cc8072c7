package retrier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/parcel/pkg/retrier"
)

var errTransient = errors.New("transient")

func fastConfig() retrier.Config {
	return retrier.Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		Multiplier:      2,
	}
}

func TestRetrier_Do(t *testing.T) {
	t.Parallel()

	t.Run("should retry until success", func(t *testing.T) {
		t.Parallel()
		attempts := 0

		err := retrier.New(fastConfig()).Do(context.Background(), func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errTransient
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("should stop on permanent errors", func(t *testing.T) {
		t.Parallel()
		cfg := fastConfig()
		permanent := errors.New("bad address")
		cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }
		attempts := 0

		err := retrier.New(cfg).Do(context.Background(), func(context.Context) error {
			attempts++
			return permanent
		})

		require.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("should stop when context is canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := retrier.New(fastConfig()).Do(ctx, func(context.Context) error {
			return errTransient
		})

		require.Error(t, err)
	})
}
