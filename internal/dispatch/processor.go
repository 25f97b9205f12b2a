package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/Gunvolt24/dispatch_bench/pkg/telemetry"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Counters - счётчики сессии. Пишутся атомарно, наружу только чтение.
type Counters struct {
	polled    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

func (c *Counters) Polled() int64    { return c.polled.Load() }
func (c *Counters) Processed() int64 { return c.processed.Load() }
func (c *Counters) Failed() int64    { return c.failed.Load() }

// ProcessOptions - параметры сохранения одной записи.
type ProcessOptions struct {
	Timeout       time.Duration // на одну попытку записи
	Retries       int           // повторы после первой неудачи
	RetryInitial  time.Duration
	ProgressEvery int64 // 0 - без логов прогресса
}

// Processor сохраняет запись в sink с ограниченным числом повторов.
type Processor struct {
	sink     ports.RecordSink
	log      ports.Logger
	counters *Counters
	topic    string
	strategy string
	opts     ProcessOptions
}

func newProcessor(sink ports.RecordSink, log ports.Logger, counters *Counters, topic, strategy string, opts ProcessOptions) *Processor {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 50 * time.Millisecond
	}
	return &Processor{
		sink:     sink,
		log:      log,
		counters: counters,
		topic:    topic,
		strategy: strategy,
		opts:     opts,
	}
}

// Handle сохраняет запись. Ошибка означает, что запись коммитить нельзя.
func (p *Processor) Handle(ctx context.Context, rec domain.Record) error {
	start := time.Now()
	ctx = ctxmeta.WithRecord(ctx, ctxmeta.RecordRef{Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset})

	ctx, span := telemetry.Tracer().Start(ctx, "dispatch.persist",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", rec.Topic),
			attribute.Int("messaging.kafka.partition", rec.Partition),
			attribute.Int64("messaging.kafka.offset", rec.Offset),
			attribute.String("dispatch.strategy", p.strategy),
		),
	)
	defer span.End()

	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
		return p.sink.SaveRecord(callCtx, rec)
	}, backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.opts.Retries)), ctx))

	metrics.ProcessingDuration.WithLabelValues(p.strategy).Observe(time.Since(start).Seconds())

	if err != nil {
		p.counters.failed.Add(1)
		metrics.RecordsFailed.WithLabelValues(p.topic, p.strategy).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.Warnf(ctx, "persist failed %s: %v (not committed)", rec.Coordinates(), err)
		return err
	}

	n := p.counters.processed.Add(1)
	metrics.RecordsProcessed.WithLabelValues(p.topic, p.strategy).Inc()
	if p.opts.ProgressEvery > 0 && n%p.opts.ProgressEvery == 0 {
		p.log.Infof(ctx, "processed %d records topic=%s strategy=%s", n, p.topic, p.strategy)
	}
	return nil
}

func (p *Processor) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.RetryInitial
	b.MaxInterval = 20 * p.opts.RetryInitial
	b.MaxElapsedTime = 0 // ограничиваем числом повторов
	return b
}
