package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/config"
	"github.com/chrisfit/storefront/internal/migration"
	"github.com/chrisfit/storefront/internal/observability"
	"github.com/chrisfit/storefront/internal/scheduler"
	"github.com/chrisfit/storefront/internal/server"
	"github.com/chrisfit/storefront/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema and bootstrap admin before anything serves traffic
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
