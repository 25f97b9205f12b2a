package dispatch

import (
	"context"
	"errors"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency - число воркеров по умолчанию.
const DefaultConcurrency = 50

// Pool - N воркеров над ограниченной очередью. Источник опрашивает одна горутина.
// Коммиты идут в порядке завершения обработки, а не в порядке доставки.
type Pool struct {
	workers int
	queue   *Queue
	poller  *poller
	coord   *CommitCoordinator
	proc    *Processor
	log     ports.Logger
	topic   string
}

func (p *Pool) Name() string { return StrategyPool }

// Queue - очередь пула (для статистики).
func (p *Pool) Queue() *Queue { return p.queue }

// Run работает до отмены ctx: источник перестаёт опрашивать и закрывает очередь,
// воркеры дорабатывают остаток очереди и выходят. ErrPendingLimit останавливает пул так же.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	work := context.WithoutCancel(ctx)

	g.Go(func() error {
		defer p.queue.Close()
		for {
			rec, ok := p.poller.next(gctx)
			if !ok {
				return nil
			}
			if err := p.coord.Track(gctx, rec); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				p.log.Errorf(gctx, "stop polling: %v", err)
				return err
			}
			if err := p.queue.Enqueue(gctx, rec); err != nil {
				// Запись не попала в очередь и не будет закоммичена: брокер доставит её снова.
				return nil
			}
			metrics.QueueDepth.WithLabelValues(p.topic).Set(float64(p.queue.Len()))
		}
	})

	for i := 1; i <= p.workers; i++ {
		wctx := ctxmeta.WithWorker(work, i)
		g.Go(func() error {
			for {
				rec, ok := p.queue.Dequeue()
				if !ok {
					return nil
				}
				metrics.QueueDepth.WithLabelValues(p.topic).Set(float64(p.queue.Len()))

				if err := p.proc.Handle(wctx, rec); err != nil {
					p.coord.Fail(rec)
					continue
				}
				_ = p.coord.Commit(wctx, rec)
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
