package ticket

import (
	"context"
	"time"

	"storefront-bot/pkg/config"
	miniostore "storefront-bot/pkg/minio"
	"storefront-bot/services/discord"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("ticket",
	fx.Provide(
		provideStore,
		provideService,
	),
	fx.Invoke(registerArchive),
)

type storeParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB
}

// provideStore picks the ticket backend. The relational store is the
// default; TICKET.STORE=mongo moves tickets to MongoDB.
func provideStore(p storeParams) (Store, error) {
	if p.Config.Ticket.Store != "mongo" {
		return NewGormStore(p.DB), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(p.Config.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		zap.L().Error("[Mongo] failed to reach MongoDB", zap.Error(err))
		return nil, err
	}
	zap.L().Info("[Mongo] connected", zap.String("database", p.Config.Mongo.Database))

	store := NewMongoStore(client.Database(p.Config.Mongo.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
	return store, nil
}

func provideService(cfg *config.Config, store Store, client *discord.Client, members *verification.Ledger, node *snowflake.Node) *Service {
	return NewService(store, client, members, node, cfg.Discord.TicketCategory)
}

// registerArchive turns on transcript archiving when MINIO.ENDPOINT is set.
func registerArchive(lc fx.Lifecycle, cfg *config.Config, svc *Service) error {
	if cfg.Minio.Endpoint == "" {
		return nil
	}
	client, err := miniostore.NewClient(cfg)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := miniostore.EnsureBucket(ctx, client, cfg.Minio.BucketName); err != nil {
				zap.L().Error("[Ticket] transcript bucket unavailable", zap.String("bucket", cfg.Minio.BucketName), zap.Error(err))
				return err
			}
			svc.SetArchiver(NewArchive(client, cfg.Minio.BucketName))
			zap.L().Info("[Ticket] transcript archive enabled", zap.String("bucket", cfg.Minio.BucketName))
			return nil
		},
	})
	return nil
}
