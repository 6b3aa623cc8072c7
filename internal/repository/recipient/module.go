package recipient

import "go.uber.org/fx"

// Module provides the recipient repository to Fx.
var Module = fx.Provide(NewRepository)
