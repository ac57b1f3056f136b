package customer

import (
	"storefront-bot/pkg/config"
	"storefront-bot/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.directory",
	fx.Provide(
		provideClient,
		provideSnapshot,
		provideDirectory,
	),
)

type clientParams struct {
	fx.In
	Config         *config.Config
	TracerProvider trace.TracerProvider `optional:"true"`
}

func provideClient(p clientParams) *Client {
	c := p.Config.Commerce
	return NewClient(c.BaseURL, c.APIKey, c.StoreID, c.Timeout, tracer(p.TracerProvider))
}

type snapshotParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func provideSnapshot(p snapshotParams) Snapshot {
	c := p.Config.Commerce
	if c.SnapshotBackend == "redis" && p.Redis != nil {
		return NewRedisSnapshot(p.Redis, rediskey.BuildCustomerSnapshotKey(c.StoreID))
	}
	return NewFileSnapshot(c.SnapshotPath)
}

type directoryParams struct {
	fx.In
	Client         *Client
	Snapshot       Snapshot
	TracerProvider trace.TracerProvider `optional:"true"`
}

func provideDirectory(p directoryParams) *Directory {
	return NewDirectory(Options{
		Client:   p.Client,
		Snapshot: p.Snapshot,
		Tracer:   tracer(p.TracerProvider),
	})
}

func tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		return nil
	}
	return tp.Tracer("storefront-bot/customer")
}
