package status

import (
	"context"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/periodic"
	"storefront-bot/services/discord"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("status",
	fx.Provide(provideService),
	fx.Invoke(registerRefresh),
)

type serviceParams struct {
	fx.In
	Config         *config.Config
	DB             *gorm.DB
	Client         *discord.Client
	TracerProvider trace.TracerProvider `optional:"true"`
}

func provideService(p serviceParams) *Service {
	var tracer trace.Tracer
	if p.TracerProvider != nil {
		tracer = p.TracerProvider.Tracer("storefront-bot/status")
	}
	return NewService(p.DB, NewClient(p.Config.Status.APIURL, tracer), p.Client, p.Config.Discord.StatusChannelID)
}

func registerRefresh(lc fx.Lifecycle, cfg *config.Config, s *Service) {
	if cfg.Discord.StatusChannelID == "" {
		zap.L().Info("[Status] no status channel configured, dashboard disabled")
		return
	}
	periodic.Register(lc, periodic.New("status-dashboard", cfg.Status.Interval, func(ctx context.Context) error {
		return s.Refresh(ctx)
	}))
}
