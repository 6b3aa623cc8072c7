package retrier

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ShouldRetryFunc decides whether an error is transient.
type ShouldRetryFunc func(error) bool

// Config tunes the exponential backoff.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Multiplier      float64

	// ShouldRetry nil retries every error.
	ShouldRetry ShouldRetryFunc
}

// Retrier runs operations with exponential backoff.
type Retrier struct {
	config Config
}

// New builds a Retrier.
func New(config Config) *Retrier {
	return &Retrier{config: config}
}

// Do executes fn until it succeeds, returns a permanent error, the elapsed
// budget runs out, or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.config.InitialInterval),
		backoff.WithMaxInterval(r.config.MaxInterval),
		backoff.WithMaxElapsedTime(r.config.MaxElapsedTime),
		backoff.WithMultiplier(r.config.Multiplier),
	)

	operation := func() error {
		err := fn(ctx)
		if err != nil && r.config.ShouldRetry != nil && !r.config.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
