package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/account"
	"github.com/smallbiznis/proppass/internal/authorization"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/invitation"
	"github.com/smallbiznis/proppass/internal/membership"
	"github.com/smallbiznis/proppass/internal/migration"
	"github.com/smallbiznis/proppass/internal/observability"
	"github.com/smallbiznis/proppass/internal/property"
	"github.com/smallbiznis/proppass/internal/ratelimit"
	"github.com/smallbiznis/proppass/internal/scheduler"
	"github.com/smallbiznis/proppass/internal/server"
	"github.com/smallbiznis/proppass/internal/tier"
	"github.com/smallbiznis/proppass/internal/usage"
	"github.com/smallbiznis/proppass/internal/user"
	"github.com/smallbiznis/proppass/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		user.Module,
		account.Module,
		tier.Module,
		usage.Module,
		membership.Module,
		property.Module,
		invitation.Module,
		authorization.Module,
		scheduler.Module,

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
