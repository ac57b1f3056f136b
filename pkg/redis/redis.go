package redis

import (
	"context"
	"time"

	"storefront-bot/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

const (
	pingAttempts = 5
	pingTimeout  = 2 * time.Second
	pingBackoff  = 3 * time.Second
)

// New opens the shared client. An unreachable server is logged but does not
// stop the boot; asynq and the directory cache report it on first use.
func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	rdb := redis.NewClient(Options(c))
	log := zap.L().With(zap.String("addr", c.Redis.Addr), zap.Int("db", c.Redis.DB))

	if err := WaitReady(context.Background(), rdb, pingAttempts, pingBackoff); err != nil {
		log.Error("[Redis] giving up waiting for redis", zap.Error(err))
	} else {
		log.Info("[Redis] connected")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

func Options(c *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	}
}

// WaitReady pings until the server answers, the attempts run out or ctx ends.
func WaitReady(ctx context.Context, rdb *redis.Client, attempts int, backoff time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = rdb.Ping(pctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		zap.L().Warn("[Redis] not ready, retrying", zap.Int("attempt", i), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
