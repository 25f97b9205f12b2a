package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gunvolt24/dispatch_bench/config"
	"github.com/Gunvolt24/dispatch_bench/internal/dispatch"
	"github.com/Gunvolt24/dispatch_bench/internal/kafka"
	"github.com/Gunvolt24/dispatch_bench/internal/kafka/franz"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/internal/repo/postgres"
	rest "github.com/Gunvolt24/dispatch_bench/internal/transport/http"
	"github.com/Gunvolt24/dispatch_bench/internal/usecase"
	"github.com/Gunvolt24/dispatch_bench/pkg/logger"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/Gunvolt24/dispatch_bench/pkg/telemetry"
	"github.com/gin-gonic/gin"
)

// ThroughputCounter - сколько строк сохранено начиная с момента since.
type ThroughputCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// App - собранное приложение: сессия диспетчеризации и ops HTTP.
type App struct {
	Logger          ports.Logger      // логгер
	HTTPServer      *http.Server      // ops HTTP-сервер
	Dispatcher      ports.Dispatcher  // сессия чтения топика
	Throughput      ThroughputCounter // отчёт при остановке, может быть nil
	gracefulTimeout time.Duration     // время ожидания завершения HTTP-сервера
	shutdownTimeout time.Duration     // время на дренаж сессии
}

// Cleanup - функция освобождения ресурсов.
type Cleanup func()

// recordClient - драйвер брокера: источник записей и подтверждение оффсетов в одном клиенте.
type recordClient interface {
	dispatch.RecordSource
	dispatch.Acknowledger
}

// applyGinMode - устанавливает режим Gin по строке;
// неизвестное значение → debug и предупреждение в лог.
func applyGinMode(ctx context.Context, mode string, log ports.Logger) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	case "", "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.DebugMode)
		log.Warnf(ctx, "unknown GIN_MODE=%q, fallback to debug", mode)
	}
}

// newRecordClient - выбор драйвера по DISPATCH_KAFKA_DRIVER.
func newRecordClient(cfg *config.Config, logg *logger.ZapLogger) (recordClient, error) {
	k := cfg.Kafka
	switch strings.ToLower(strings.TrimSpace(k.Driver)) {
	case "", "kafka-go":
		return kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:           k.Brokers,
			Topic:             k.Topic,
			GroupID:           k.GroupID,
			StartOffset:       k.StartOffset,
			MinBytes:          k.MinBytes,
			MaxBytes:          k.MaxBytes,
			MaxWait:           k.PollTimeout,
			SessionTimeout:    k.SessionTimeout,
			HeartbeatInterval: k.HeartbeatInterval,
		}, logg), nil
	case "franz":
		c, err := franz.NewConsumer(franz.Config{
			Brokers:           k.Brokers,
			Topic:             k.Topic,
			GroupID:           k.GroupID,
			StartOffset:       k.StartOffset,
			MinBytes:          k.MinBytes,
			MaxBytes:          k.MaxBytes,
			MaxWait:           k.PollTimeout,
			SessionTimeout:    k.SessionTimeout,
			HeartbeatInterval: k.HeartbeatInterval,
		}, logg.Base(), logg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown kafka driver %q (want kafka-go|franz)", k.Driver)
	}
}

// sessionConfig - перенос настроек сервиса в параметры сессии.
func sessionConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		Topic:         cfg.Kafka.Topic,
		Concurrency:   cfg.Dispatch.Concurrency,
		QueueCapacity: cfg.Dispatch.QueueCapacity,
		CommitPolicy:  dispatch.CommitPolicy(cfg.Dispatch.CommitPolicy),
		PollTimeout:   cfg.Kafka.PollTimeout,
		RetryInitial:  cfg.Kafka.RetryInitial,
		RetryMax:      cfg.Kafka.RetryMax,
		Process: dispatch.ProcessOptions{
			Timeout:       cfg.Dispatch.ProcessTimeout,
			Retries:       cfg.Dispatch.SinkRetries,
			RetryInitial:  cfg.Dispatch.SinkRetryInitial,
			ProgressEvery: cfg.Dispatch.ProgressEvery,
		},
		FlushTimeout: cfg.Dispatch.ProcessTimeout,
		MaxPending:   cfg.Dispatch.MaxPending,
	}
}

// Bootstrap - собирает зависимости и возвращает приложение, функцию очистки и ошибку.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, Cleanup, error) {
	// Логгер (dev/prod режим и файл задаются конфигурацией).
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd, cfg.Logger.File)
	if err != nil {
		return nil, func() {}, err
	}
	closeLogger := func() {
		if cErr := cleanupLogger(); cErr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cErr)
		}
	}

	// Регистрация метрик (Prometheus).
	metrics.MustRegister()

	// Пул подключений Postgres
	// Каждый воркер держит соединение на время записи: держим их открытыми заранее.
	workers := int32(max(cfg.Dispatch.Concurrency, 1))
	if cfg.Dispatch.Concurrency == 0 {
		workers = dispatch.DefaultConcurrency
	}
	if cfg.Postgres.MaxConns > 0 && workers > cfg.Postgres.MaxConns {
		logg.Warnf(ctx, "concurrency=%d exceeds postgres max_conns=%d, workers will wait for connections",
			workers, cfg.Postgres.MaxConns)
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: workers,
		AppName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		closeLogger()
		return nil, func() {}, err
	}

	if cfg.Postgres.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, logg); err != nil {
			pool.Close()
			closeLogger()
			return nil, func() {}, err
		}
	}

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию - no-op.
	shutdownTrace := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		setup, tErr := telemetry.SetupTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
		if tErr != nil {
			logg.Warnf(ctx, "failed to setup tracing: %v", tErr)
		} else {
			logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
				cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
			shutdownTrace = setup
		}
	}

	// Sink: запись → сущность → Postgres.
	repo := postgres.NewMessageRepository(pool)
	service := usecase.NewMessageService(repo, logg)

	client, err := newRecordClient(cfg, logg)
	if err != nil {
		_ = shutdownTrace(context.Background())
		pool.Close()
		closeLogger()
		return nil, func() {}, err
	}

	session, err := dispatch.NewSession(sessionConfig(cfg), client, client, service, logg)
	if err != nil {
		_ = client.Close()
		_ = shutdownTrace(context.Background())
		pool.Close()
		closeLogger()
		return nil, func() {}, err
	}
	logg.Infof(ctx, "kafka driver=%s topic=%s group=%s strategy=%s",
		cfg.Kafka.Driver, cfg.Kafka.Topic, cfg.Kafka.GroupID, session.Strategy())

	// Режим Gin.
	applyGinMode(ctx, cfg.HTTP.GinMode, logg)

	// Имя сервиса для otelgin (только при включённом трейсинге).
	otelServiceName := ""
	if cfg.Tracing.Enabled {
		otelServiceName = cfg.Tracing.ServiceName
	}

	router := rest.NewRouter(rest.NewHandler(session, logg, cfg.HTTP.HandlerTimeout), otelServiceName)
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	app := &App{
		Logger:          logg,
		HTTPServer:      httpSrv,
		Dispatcher:      session,
		Throughput:      service,
		gracefulTimeout: cfg.HTTP.GracefulTimeout,
		shutdownTimeout: cfg.Dispatch.ShutdownTimeout,
	}

	// Очистка ресурсов (в обратном порядке).
	cleanup := func() {
		if terr := shutdownTrace(context.Background()); terr != nil {
			logg.Warnf(ctx, "shutdown tracing: %v", terr)
		}
		if err := session.Close(); err != nil {
			logg.Warnf(ctx, "kafka client close error: %v", err)
		}
		pool.Close()
		closeLogger()
	}

	return app, cleanup, nil
}

// Run - запускает сессию и HTTP-сервер; ждёт отмены контекста или ошибки и останавливает их.
// Ошибка сессии (например, недоступный брокер при подписке) возвращается вызывающему.
func (a *App) Run(ctx context.Context) error {
	startedAt := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatchDone := make(chan error, 1)
	go func() {
		a.Logger.Infof(ctx, "dispatch session starting")
		dispatchDone <- a.Dispatcher.Run(runCtx)
	}()

	httpErr := make(chan error, 1)
	go func() {
		a.Logger.Infof(ctx, "http server starting (addr=%s)", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "shutdown requested, draining dispatch session")
		runErr = a.waitDispatch(ctx, cancel, dispatchDone)
	case err := <-httpErr:
		a.Logger.Warnf(ctx, "http server error: %v", err)
		runErr = a.waitDispatch(ctx, cancel, dispatchDone)
	case err := <-dispatchDone:
		if err != nil {
			a.Logger.Errorf(ctx, "dispatch session failed: %v", err)
		}
		runErr = err
	}

	a.reportThroughput(ctx, startedAt)

	gt := a.gracefulTimeout
	if gt <= 0 {
		gt = 5 * time.Second
	}

	// Корректная остановка HTTP-сервера.
	shutdownCtx, stop := context.WithTimeout(context.Background(), gt)
	defer stop()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warnf(ctx, "http server shutdown failed: %v", err)
	} else {
		a.Logger.Infof(ctx, "http server stopped gracefully")
	}

	if err := a.Dispatcher.Close(); err != nil {
		a.Logger.Warnf(ctx, "dispatch close error: %v", err)
	}

	a.Logger.Infof(ctx, "service stopped")
	return runErr
}

// waitDispatch отменяет сессию и ждёт её дренажа не дольше shutdownTimeout.
func (a *App) waitDispatch(ctx context.Context, cancel context.CancelFunc, done <-chan error) error {
	cancel()

	st := a.shutdownTimeout
	if st <= 0 {
		st = 30 * time.Second
	}
	timer := time.NewTimer(st)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			a.Logger.Errorf(ctx, "dispatch session stopped with error: %v", err)
		}
		return err
	case <-timer.C:
		a.Logger.Warnf(ctx, "dispatch drain exceeded %s, in-flight records will be redelivered", st)
		return nil
	}
}

func (a *App) reportThroughput(ctx context.Context, since time.Time) {
	if a.Throughput == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := a.Throughput.CountSince(rctx, since)
	if err != nil {
		a.Logger.Warnf(ctx, "throughput report failed: %v", err)
		return
	}
	elapsed := time.Since(since)
	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(n) / s
	}
	a.Logger.Infof(ctx, "throughput: persisted=%d elapsed=%s rate=%.1f msg/s", n, elapsed.Round(time.Millisecond), rate)
}
