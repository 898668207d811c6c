package router

import "go.uber.org/fx"

// Module builds the gin engine serving the catalog API.
var Module = fx.Module("router", fx.Provide(Setup))
