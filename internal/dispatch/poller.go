package dispatch

import (
	"context"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/cenkalti/backoff/v4"
)

// poller - цикл опроса источника. Транспортные ошибки логирует и повторяет
// с экспоненциальным backoff, пока не отменят ctx.
type poller struct {
	source   RecordSource
	log      ports.Logger
	counters *Counters
	topic    string
	timeout  time.Duration
	// retry используется только горутиной источника.
	retry backoff.BackOff
}

func newPoller(source RecordSource, log ports.Logger, counters *Counters, topic string, timeout, retryInitial, retryMax time.Duration) *poller {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &poller{
		source:   source,
		log:      log,
		counters: counters,
		topic:    topic,
		timeout:  timeout,
		retry:    newPollBackOff(retryInitial, retryMax),
	}
}

// newPollBackOff - без предела по времени: опрос повторяется до отмены.
func newPollBackOff(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if maxInterval <= 0 {
		maxInterval = 10 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// next ждёт следующую запись. ok=false - контекст отменён, опрос остановлен.
func (p *poller) next(ctx context.Context) (domain.Record, bool) {
	for {
		if ctx.Err() != nil {
			return domain.Record{}, false
		}

		rec, ok, err := p.source.Poll(ctx, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Record{}, false
			}
			sleep := p.retry.NextBackOff()
			p.log.Warnf(ctx, "poll failed: %v (will retry in %s)", err, sleep)
			if !sleepWithBackoff(ctx, sleep) {
				return domain.Record{}, false
			}
			continue
		}

		p.retry.Reset()
		if !ok {
			continue
		}

		p.counters.polled.Add(1)
		metrics.RecordsConsumed.WithLabelValues(p.topic).Inc()
		return rec, true
	}
}

// sleepWithBackoff ждет backoff или останавливается по контексту.
func sleepWithBackoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
