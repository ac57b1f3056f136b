package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const slowQuery = 200 * time.Millisecond

// ZapGormLogger routes gorm's logger through zap. Queries run inside a traced
// request carry the trace ID so they can be matched to spans.
type ZapGormLogger struct {
	Zap           *zap.Logger
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
	ShowSQL       bool
}

func NewZapGormLogger(z *zap.Logger, logLevel logger.LogLevel, showSQL bool) *ZapGormLogger {
	return &ZapGormLogger{Zap: z.Named("gorm"), LogLevel: logLevel, ShowSQL: showSQL, SlowThreshold: slowQuery}
}

func (l *ZapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *ZapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, logger.Info, msg, data)
}

func (l *ZapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, logger.Warn, msg, data)
}

func (l *ZapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.log(ctx, logger.Error, msg, data)
}

func (l *ZapGormLogger) log(ctx context.Context, level logger.LogLevel, msg string, data []interface{}) {
	if l.LogLevel < level {
		return
	}
	z := l.with(ctx)
	text := fmt.Sprintf(msg, data...)
	switch level {
	case logger.Error:
		z.Error(text)
	case logger.Warn:
		z.Warn(text)
	default:
		z.Info(text)
	}
}

func (l *ZapGormLogger) with(ctx context.Context) *zap.Logger {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return l.Zap.With(zap.String("trace_id", sc.TraceID().String()))
	}
	return l.Zap
}

func (l *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, logger.ErrRecordNotFound)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	var level logger.LogLevel
	switch {
	case err != nil && !notFound:
		level = logger.Error
	case slow:
		level = logger.Warn
	case l.ShowSQL:
		level = logger.Info
	default:
		return
	}
	if l.LogLevel < level {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("caller", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	z := l.with(ctx)
	switch level {
	case logger.Error:
		z.Error("[DB] query failed", append(fields, zap.Error(err))...)
	case logger.Warn:
		z.Warn("[DB] slow query", append(fields, zap.Duration("threshold", l.SlowThreshold))...)
	default:
		z.Debug("[DB] query", fields...)
	}
}
