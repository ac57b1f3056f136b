package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/db"
	"storefront-bot/pkg/gen"
	"storefront-bot/pkg/health"
	"storefront-bot/pkg/httpapi"
	"storefront-bot/pkg/logger"
	"storefront-bot/pkg/otelcol"
	"storefront-bot/pkg/profiling"
	"storefront-bot/pkg/redis"
	"storefront-bot/pkg/server"
	"storefront-bot/pkg/task"
	"storefront-bot/services/api"
	"storefront-bot/services/bot"
	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/discord"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/membersync"
	"storefront-bot/services/relay"
	"storefront-bot/services/reward"
	"storefront-bot/services/role"
	"storefront-bot/services/schema"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		schema.Module,
		redis.Module,
		gen.Module,
		task.Client,
		task.Server,
		fx.Provide(
			func(c *discord.Client) health.Gateway { return c },
		),
		health.Module,
		server.ProvideHTTPServer,
		httpapi.Module,
		discord.Module,
		customer.Module,
		loyalty.Module,
		coupon.Module,
		role.Module,
		verification.Module,
		reward.Module,
		membersync.Module,
		ticket.Module,
		relay.Module,
		status.Module,
		bot.Module,
		api.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
