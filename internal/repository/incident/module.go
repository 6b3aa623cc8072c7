package incident

import "go.uber.org/fx"

// Module provides the incident repository to Fx.
var Module = fx.Provide(NewRepository)
