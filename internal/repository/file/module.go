package file

import "go.uber.org/fx"

// Module provides the file repository to Fx.
var Module = fx.Provide(NewRepository)
