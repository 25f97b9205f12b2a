package dispatch

import (
	"context"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
)

// Ordered - последовательная стратегия: poll → persist → commit → poll.
// Порядок коммитов совпадает с порядком доставки. Очереди и воркеров нет.
type Ordered struct {
	poller *poller
	coord  *CommitCoordinator
	proc   *Processor
	log    ports.Logger
}

func (o *Ordered) Name() string { return StrategyOrdered }

func (o *Ordered) Run(ctx context.Context) error {
	// Начатая запись доводится до коммита и после отмены.
	work := context.WithoutCancel(ctx)

	for {
		rec, ok := o.poller.next(ctx)
		if !ok {
			return nil
		}
		if err := o.coord.Track(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			o.log.Errorf(ctx, "stop polling: %v", err)
			return err
		}

		if err := o.proc.Handle(work, rec); err != nil {
			o.coord.Fail(rec)
			continue
		}
		_ = o.coord.Commit(work, rec)
	}
}
