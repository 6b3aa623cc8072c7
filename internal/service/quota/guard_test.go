package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/pkg/errorbank"
)

type fakeCounter struct {
	pickups []time.Time
	err     error

	gotFrom, gotTo time.Time
}

func (f *fakeCounter) CountPickedUpBetween(_ context.Context, from, to time.Time) (int, error) {
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, p := range f.pickups {
		if !p.Before(from) && p.Before(to) {
			n++
		}
	}
	return n, nil
}

func TestGuard_Check(t *testing.T) {
	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	fivePickups := []time.Time{
		day.Add(8 * time.Hour),
		day.Add(9 * time.Hour),
		day.Add(10 * time.Hour),
		day.Add(11 * time.Hour),
		day.Add(23*time.Hour + 59*time.Minute),
	}

	tests := []struct {
		name     string
		pickups  []time.Time
		at       time.Time
		wantKind errorbank.Kind
	}{
		{"admits below the cap", fivePickups[:4], day.Add(12 * time.Hour), ""},
		{"rejects the sixth pickup of the day", fivePickups, day.Add(12 * time.Hour), errorbank.KindQuotaExceeded},
		{"rejects at the first second of a full day", fivePickups, day, errorbank.KindQuotaExceeded},
		{"admits the next day", fivePickups, day.Add(24 * time.Hour), ""},
		{"admits the previous day", fivePickups, day.Add(-time.Second), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&fakeCounter{pickups: tt.pickups}, 5, time.UTC, zap.NewNop())

			err := g.Check(context.Background(), tt.at)

			if tt.wantKind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errorbank.Is(err, tt.wantKind))
		})
	}
}

func TestGuard_WindowUsesReferenceZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	counter := &fakeCounter{}
	g := New(counter, 5, loc, zap.NewNop())

	// 01:30 UTC on the 15th is still the 14th in Sao Paulo (UTC-3).
	at := time.Date(2026, 2, 15, 1, 30, 0, 0, time.UTC)
	require.NoError(t, g.Check(context.Background(), at))

	assert.True(t, counter.gotFrom.Equal(time.Date(2026, 2, 14, 3, 0, 0, 0, time.UTC)))
	assert.True(t, counter.gotTo.Equal(time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)))
}

func TestGuard_CountFailure(t *testing.T) {
	g := New(&fakeCounter{err: errors.New("db down")}, 5, time.UTC, zap.NewNop())

	err := g.Check(context.Background(), time.Now())

	assert.True(t, errorbank.Is(err, errorbank.KindInternal))
}
