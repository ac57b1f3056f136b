package profiling

import (
	"context"

	"storefront-bot/pkg/config"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("profiling", fx.Invoke(Register))

func profileConfig(c *config.Config) pyroscope.Config {
	return pyroscope.Config{
		ApplicationName: c.AppName,
		ServerAddress:   c.Pyroscope.Addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"service_name": c.AppName,
			"env":          c.AppEnv,
		},
	}
}

// Register starts continuous profiling when PYROSCOPE.ADDR is set.
func Register(lc fx.Lifecycle, c *config.Config) {
	if c.Pyroscope.Addr == "" {
		return
	}

	var profiler *pyroscope.Profiler
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p, err := pyroscope.Start(profileConfig(c))
			if err != nil {
				// Profiling is best effort; the bot keeps running without it.
				zap.L().Warn("[Profiling] pyroscope not started", zap.String("addr", c.Pyroscope.Addr), zap.Error(err))
				return nil
			}
			profiler = p
			zap.L().Info("[Profiling] pyroscope started", zap.String("addr", c.Pyroscope.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			if profiler == nil {
				return nil
			}
			return profiler.Stop()
		},
	})
}
