package recipient

import "go.uber.org/fx"

// Module provides the recipient service to Fx.
var Module = fx.Provide(NewService)
