package logger

import (
	"context"

	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapLogger - реализация ports.Logger поверх zap.SugaredLogger.
// Метаданные из контекста (request_id, координаты записи, воркер, trace) добавляются полями.
type ZapLogger struct {
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	isProd bool
}

// NewZapLogger - dev/prod логгер; если filePath не пуст, дополнительно пишет JSON в файл с ротацией.
func NewZapLogger(isProd bool, filePath string) (*ZapLogger, func() error, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if isProd {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}

	var rotator *lumberjack.Logger
	if filePath != "" {
		rotator = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zap.InfoLevel,
		)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	loggerWrap := newWithLogger(logger, isProd)

	cleanup := func() error {
		// Sync на stdout/stderr часто возвращает EINVAL - ошибку отдаём наверх как есть.
		syncErr := loggerWrap.base.Sync()
		if rotator != nil {
			if err := rotator.Close(); err != nil {
				return err
			}
		}
		return syncErr
	}
	return loggerWrap, cleanup, nil
}

func newWithLogger(l *zap.Logger, isProd bool) *ZapLogger {
	return &ZapLogger{
		base:   l,
		sugar:  l.Sugar(),
		isProd: isProd,
	}
}

func (z *ZapLogger) Infof(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Infof(format, args...)
}
func (z *ZapLogger) Warnf(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Warnf(format, args...)
}
func (z *ZapLogger) Errorf(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Errorf(format, args...)
}

func (z *ZapLogger) Base() *zap.Logger           { return z.base }
func (z *ZapLogger) Sugared() *zap.SugaredLogger { return z.sugar }

// withContext - sugared-логгер с полями из ctx; без метаданных возвращает базовый.
func (z *ZapLogger) withContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return z.sugar
	}

	var kv []any
	if rid, ok := ctxmeta.RequestIDFromContext(ctx); ok {
		kv = append(kv, "request_id", rid)
	}
	if ref, ok := ctxmeta.RecordFromContext(ctx); ok {
		kv = append(kv, "topic", ref.Topic, "partition", ref.Partition, "offset", ref.Offset)
	}
	if w, ok := ctxmeta.WorkerFromContext(ctx); ok {
		kv = append(kv, "worker", w)
	}
	if tr, ok := ctxmeta.TraceIDFromContext(ctx); ok {
		kv = append(kv, "trace_id", tr)
	}

	if len(kv) == 0 {
		return z.sugar
	}
	return z.sugar.With(kv...)
}
