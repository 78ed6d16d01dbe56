package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/karoonet/billing/internal/config"
	"github.com/karoonet/billing/internal/logger"
	"github.com/karoonet/billing/internal/migration"
	"github.com/karoonet/billing/internal/server"
	"github.com/karoonet/billing/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
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
