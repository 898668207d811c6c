package featuresource

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/config"
)

// Module exposes the remote feature source to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) Source {
	return NewHTTPClient(p.Config.FeatureSourceTimeout, p.Config.MaxUploadBytes, p.Logger)
}
