package courier

import "go.uber.org/fx"

// Module provides the courier service to Fx.
var Module = fx.Provide(NewService)
