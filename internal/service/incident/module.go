package incident

import "go.uber.org/fx"

// Module provides the incident tracker to Fx.
var Module = fx.Provide(NewService)
