package task

import (
	"context"
	"fmt"
	"time"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("asynq:client",
	fx.Provide(newClient, NewEnqueuer),
)

// newClient shares the application's redis connection with asynq.
func newClient(lc fx.Lifecycle, rdb *redis.Client) (*asynq.Client, error) {
	client := asynq.NewClientFromRedisClient(rdb)
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("asynq client: %w", err)
	}
	zap.L().Info("[Asynq] client connected")

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

var Server = fx.Module("asynq:server",
	fx.Provide(newServeMux),
	fx.Invoke(runServer),
)

type muxParams struct {
	fx.In
	Tracer trace.TracerProvider `optional:"true"`
}

func newServeMux(p muxParams) *asynq.ServeMux {
	tp := p.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mux := asynq.NewServeMux()
	mux.Use(Observe(tp.Tracer("storefront-bot/task")))
	return mux
}

// Observe wraps every handler in a span and logs how long it ran.
func Observe(tracer trace.Tracer) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			ctx, span := tracer.Start(ctx, "task "+t.Type(), trace.WithSpanKind(trace.SpanKindConsumer))
			defer span.End()

			id, _ := asynq.GetTaskID(ctx)
			retry, _ := asynq.GetRetryCount(ctx)
			span.SetAttributes(
				attribute.String("task.type", t.Type()),
				attribute.String("task.id", id),
				attribute.Int("task.retry", retry),
			)

			start := time.Now()
			err := next.ProcessTask(ctx, t)
			fields := []zap.Field{
				zap.String("task_type", t.Type()),
				zap.String("task_id", id),
				zap.Int("retry", retry),
				zap.Duration("took", time.Since(start)),
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				zap.L().Warn("[Asynq] task failed", append(fields, zap.Error(err))...)
				return err
			}
			zap.L().Debug("[Asynq] task done", fields...)
			return nil
		})
	}
}

func runServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One sync at a time is enforced by the scheduler guard; DMs are
			// rate limited by Discord, so a small pool is enough.
			Concurrency:    4,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
			Queues: map[string]int{
				taskname.QueueCritical: 6,
				taskname.QueueDefault:  3,
				taskname.QueueLow:      1,
			},
			Logger:   zap.S().Named("asynq"),
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				if retried < maxRetry {
					return
				}
				zap.L().Error("[Asynq] task permanently failed", zap.String("task_type", t.Type()), zap.Error(err))
			}),
		},
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Start returns once the workers are running.
			if err := srv.Start(mux); err != nil {
				return fmt.Errorf("asynq server: %w", err)
			}
			zap.L().Info("[Asynq] server started", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			srv.Shutdown()
			return nil
		},
	})
}
