package service

import (
	"go.uber.org/fx"

	"github.com/beaconly/beacon/internal/service/repository"
	"github.com/beaconly/beacon/internal/service/service"
)

var Module = fx.Module("service.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
