package oauth

import (
	"go.uber.org/fx"

	"github.com/beaconly/beacon/internal/config"
)

var Module = fx.Module("oauth",
	fx.Provide(New),
	fx.Provide(func(cfg config.Config) *StateSigner {
		return NewStateSigner(cfg.OAuth.StateSecret)
	}),
)
