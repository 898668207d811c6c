package logger

import "go.uber.org/fx"

// Module provides the application logger and routes fx events through it.
var Module = fx.Module("logger",
	fx.Provide(New),
	fx.WithLogger(FxEventLogger),
)
