package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/beaconly/beacon/internal/alert"
	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/crypto"
	"github.com/beaconly/beacon/internal/logger"
	"github.com/beaconly/beacon/internal/migration"
	"github.com/beaconly/beacon/internal/notification"
	"github.com/beaconly/beacon/internal/oauth"
	"github.com/beaconly/beacon/internal/poller"
	"github.com/beaconly/beacon/internal/provider/adapters"
	"github.com/beaconly/beacon/internal/schedule"
	"github.com/beaconly/beacon/internal/server"
	"github.com/beaconly/beacon/internal/service"
	"github.com/beaconly/beacon/internal/telemetry"
	"github.com/beaconly/beacon/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		crypto.Module,
		telemetry.Module,

		// Functional domains
		adapters.Module,
		schedule.Module,
		notification.Module,
		oauth.Module,
		service.Module,
		alert.Module,
		poller.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
