package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
)

var (
	_ ports.Dispatcher    = (*Session)(nil)
	_ ports.StatsProvider = (*Session)(nil)
)

// Config - параметры сессии; значения приходят из конфигурации сервиса как есть.
type Config struct {
	Topic         string
	Concurrency   int
	QueueCapacity int
	CommitPolicy  CommitPolicy
	PollTimeout   time.Duration
	RetryInitial  time.Duration // backoff ошибок опроса
	RetryMax      time.Duration
	Process       ProcessOptions
	FlushTimeout  time.Duration // на повтор неудавшихся коммитов при остановке
	MaxPending    int           // предел ожидающих оффсетов партиции, 0 - DefaultMaxPending
}

// Session - подписка на один топик вместе с источником, стратегией и координатором коммитов.
type Session struct {
	cfg       Config
	source    RecordSource
	log       ports.Logger
	sm        *stateMachine
	coord     *CommitCoordinator
	counters  *Counters
	strategy  Strategy
	queue     *Queue
	closeOnce sync.Once
	closeErr  error
}

// NewSession собирает сессию. Стратегия выбирается здесь и больше не меняется.
func NewSession(cfg Config, source RecordSource, ack Acknowledger, sink ports.RecordSink, log ports.Logger) (*Session, error) {
	if source == nil || ack == nil || sink == nil || log == nil {
		return nil, errors.New("dispatch: source, acknowledger, sink and logger are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("dispatch: topic is required")
	}
	policy, err := ParseCommitPolicy(string(cfg.CommitPolicy))
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	cfg.CommitPolicy = policy

	counters := &Counters{}
	coord := NewCommitCoordinator(ack, policy, cfg.MaxPending, log)
	strategy := SelectStrategy(cfg.Concurrency, cfg.QueueCapacity, Deps{
		Source:       source,
		Coordinator:  coord,
		Sink:         sink,
		Log:          log,
		Counters:     counters,
		Topic:        cfg.Topic,
		PollTimeout:  cfg.PollTimeout,
		RetryInitial: cfg.RetryInitial,
		RetryMax:     cfg.RetryMax,
		Process:      cfg.Process,
	})

	s := &Session{
		cfg:      cfg,
		source:   source,
		log:      log,
		sm:       newStateMachine(cfg.Topic, log),
		coord:    coord,
		counters: counters,
		strategy: strategy,
	}
	if p, ok := strategy.(*Pool); ok {
		s.queue = p.Queue()
	}
	return s, nil
}

// Run подписывается на топик и раздаёт записи до отмены ctx.
// Отмена не ошибка: сессия дорабатывает начатое, закрывает источник и возвращает nil.
func (s *Session) Run(ctx context.Context) error {
	if st := s.sm.state(); st != StateCreated {
		return fmt.Errorf("%w: run in state %s", ErrInvalidTransition, st)
	}

	if err := s.source.Subscribe(ctx); err != nil {
		_ = s.sm.transition(ctx, StateClosed)
		_ = s.closeSource()
		return fmt.Errorf("subscribe topic %s: %w", s.cfg.Topic, err)
	}
	if err := s.sm.transition(ctx, StateSubscribed); err != nil {
		return err
	}
	if err := s.sm.transition(ctx, StateRunning); err != nil {
		return err
	}
	s.log.Infof(ctx, "dispatch started topic=%s strategy=%s concurrency=%d queue=%d policy=%s",
		s.cfg.Topic, s.strategy.Name(), s.cfg.Concurrency, s.cfg.QueueCapacity, s.cfg.CommitPolicy)

	detached := context.WithoutCancel(ctx)

	// Draining наступает в момент отмены, пока стратегия ещё дорабатывает начатое.
	drained := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(drained)
		_ = s.sm.transition(detached, StateDraining)
	})

	runErr := s.strategy.Run(ctx)

	if stop() {
		// Стратегия вышла сама, без отмены.
		_ = s.sm.transition(detached, StateDraining)
	} else {
		<-drained
	}

	flushCtx, cancel := context.WithTimeout(detached, s.cfg.FlushTimeout)
	if err := s.coord.Flush(flushCtx); err != nil {
		s.log.Warnf(detached, "final commit flush failed: %v", err)
	}
	cancel()

	closeErr := s.closeSource()
	_ = s.sm.transition(detached, StateClosed)

	st := s.Stats()
	s.log.Infof(detached, "dispatch closed topic=%s polled=%d processed=%d failed=%d committed=%d",
		st.Topic, st.Polled, st.Processed, st.Failed, st.Committed)

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, closeErr)
}

// Close освобождает источник. Нужен, если Run так и не был вызван.
func (s *Session) Close() error {
	if s.sm.state() == StateCreated {
		_ = s.sm.transition(context.Background(), StateClosed)
	}
	return s.closeSource()
}

func (s *Session) closeSource() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.source.Close()
	})
	return s.closeErr
}

func (s *Session) State() State { return s.sm.state() }

// Transitions - пройденные состояния по порядку.
func (s *Session) Transitions() []State { return s.sm.visited() }

func (s *Session) Strategy() string { return s.strategy.Name() }

// Stats - снимок счётчиков сессии.
func (s *Session) Stats() domain.DispatchStats {
	st := domain.DispatchStats{
		State:          s.sm.state().String(),
		Strategy:       s.strategy.Name(),
		Topic:          s.cfg.Topic,
		Polled:         s.counters.Polled(),
		Processed:      s.counters.Processed(),
		Failed:         s.counters.Failed(),
		Committed:      s.coord.Committed(),
		CommitCalls:    s.coord.CommitCalls(),
		CommitFailures: s.coord.CommitFailures(),
	}
	if s.queue != nil {
		st.QueueDepth = s.queue.Len()
		st.QueueCapacity = s.queue.Cap()
		st.QueueHighWater = s.queue.HighWater()
	}
	return st
}
