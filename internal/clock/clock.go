package clock

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
)

// Module provides the wall clock used for lifecycle timestamps.
var Module = fx.Provide(New)

// New returns the real clock. Tests substitute clockwork.NewFakeClockAt.
func New() clockwork.Clock {
	return clockwork.NewRealClock()
}
