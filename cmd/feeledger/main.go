package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/migration"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/server"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/db"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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
