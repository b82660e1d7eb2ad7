package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/audit"
	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/gateway"
	"github.com/smallbiznis/acquiring/internal/lock"
	"github.com/smallbiznis/acquiring/internal/observability"
	"github.com/smallbiznis/acquiring/internal/payment"
	"github.com/smallbiznis/acquiring/internal/reconcile"
	"github.com/smallbiznis/acquiring/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Services the status refresh goes through
		audit.Module,
		gateway.Module,
		payment.Module,

		// No server module!
		reconcile.Module,
		reconcile.DaemonModule,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
