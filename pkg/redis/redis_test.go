package redis

import (
	"context"
	"testing"
	"time"

	"storefront-bot/pkg/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Addr = "cache:6379"
	cfg.Redis.DB = 2
	cfg.Redis.PoolSize = 8

	opts := Options(cfg)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 8, opts.PoolSize)
}

func TestWaitReadyGivesUp(t *testing.T) {
	// Nothing listens on port 1.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	err := WaitReady(context.Background(), rdb, 2, 10*time.Millisecond)
	require.Error(t, err)
}

func TestWaitReadyStopsOnCancel(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitReady(ctx, rdb, 3, time.Hour)
	require.Error(t, err)
}
