package dispatch

import (
	"context"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
)

const (
	StrategyOrdered = "ordered"
	StrategyPool    = "pool"
)

// Strategy - способ раздачи записей. Run блокируется до отмены ctx и ожидания всей начатой работы.
type Strategy interface {
	Name() string
	Run(ctx context.Context) error
}

// Deps - общие зависимости стратегий.
type Deps struct {
	Source       RecordSource
	Coordinator  *CommitCoordinator
	Sink         ports.RecordSink
	Log          ports.Logger
	Counters     *Counters
	Topic        string
	PollTimeout  time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
	Process      ProcessOptions
}

// SelectStrategy выбирает стратегию один раз на сессию: concurrency <= 1 - Ordered, иначе Pool.
func SelectStrategy(concurrency, queueCapacity int, d Deps) Strategy {
	if d.Counters == nil {
		d.Counters = &Counters{}
	}
	pl := newPoller(d.Source, d.Log, d.Counters, d.Topic, d.PollTimeout, d.RetryInitial, d.RetryMax)

	if concurrency <= 1 {
		return &Ordered{
			poller: pl,
			coord:  d.Coordinator,
			proc:   newProcessor(d.Sink, d.Log, d.Counters, d.Topic, StrategyOrdered, d.Process),
			log:    d.Log,
		}
	}

	return &Pool{
		workers: concurrency,
		queue:   NewQueue(queueCapacity),
		poller:  pl,
		coord:   d.Coordinator,
		proc:    newProcessor(d.Sink, d.Log, d.Counters, d.Topic, StrategyPool, d.Process),
		log:     d.Log,
		topic:   d.Topic,
	}
}
