package alert

import (
	"go.uber.org/fx"

	"github.com/beaconly/beacon/internal/alert/repository"
	"github.com/beaconly/beacon/internal/alert/service"
)

var Module = fx.Module("alert.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
