package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/assignment"
	"github.com/smallbiznis/fieldops/internal/auth"
	"github.com/smallbiznis/fieldops/internal/authorization"
	"github.com/smallbiznis/fieldops/internal/calendar"
	"github.com/smallbiznis/fieldops/internal/catalog"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/customer"
	"github.com/smallbiznis/fieldops/internal/history"
	"github.com/smallbiznis/fieldops/internal/jobcard"
	"github.com/smallbiznis/fieldops/internal/migration"
	"github.com/smallbiznis/fieldops/internal/notification"
	"github.com/smallbiznis/fieldops/internal/observability"
	"github.com/smallbiznis/fieldops/internal/order"
	"github.com/smallbiznis/fieldops/internal/payment"
	"github.com/smallbiznis/fieldops/internal/providers"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"github.com/smallbiznis/fieldops/internal/realtime"
	"github.com/smallbiznis/fieldops/internal/scheduler"
	"github.com/smallbiznis/fieldops/internal/seed"
	"github.com/smallbiznis/fieldops/internal/server"
	"github.com/smallbiznis/fieldops/internal/storage"
	"github.com/smallbiznis/fieldops/internal/technician"
	"github.com/smallbiznis/fieldops/pkg/db"
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
		migration.Module,
		seed.Module,
		ratelimit.Module,
		realtime.Module,
		storage.Module,
		providers.Module,

		// Access control
		auth.Module,
		authorization.Module,

		// Functional domains
		customer.Module,
		technician.Module,
		catalog.Module,
		calendar.Module,
		history.Module,
		notification.Module,
		order.Module,
		assignment.Module,
		jobcard.Module,
		payment.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
