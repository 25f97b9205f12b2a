package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// fakeBroker - журнал партиций и закоммиченные оффсеты группы.
type fakeBroker struct {
	mu        sync.Mutex
	topic     string
	logs      map[int][]domain.Record
	committed map[int]int64
}

func newFakeBroker(topic string, partitions, perPartition int) *fakeBroker {
	b := &fakeBroker{
		topic:     topic,
		logs:      make(map[int][]domain.Record),
		committed: make(map[int]int64),
	}
	for p := 0; p < partitions; p++ {
		for o := 0; o < perPartition; o++ {
			b.logs[p] = append(b.logs[p], domain.Record{
				Topic:     topic,
				Partition: p,
				Offset:    int64(o),
				Value:     []byte(`{"id":"x"}`),
			})
		}
		b.committed[p] = -1
	}
	return b
}

func (b *fakeBroker) committedOffset(partition int) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[partition]
}

// source - новый потребитель группы: читает с закоммиченного оффсета.
func (b *fakeBroker) source() *fakeSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSource{broker: b, pos: make(map[int]int64)}
	for p := 0; p < len(b.logs); p++ {
		s.parts = append(s.parts, p)
		s.pos[p] = b.committed[p] + 1
	}
	return s
}

type fakeSource struct {
	broker       *fakeBroker
	mu           sync.Mutex
	parts        []int
	pos          map[int]int64
	next         int
	subscribeErr error
	pollErrs     int // сколько первых Poll вернут ошибку
	polls        atomic.Int64
	closed       atomic.Int64
}

func (s *fakeSource) Subscribe(context.Context) error { return s.subscribeErr }

func (s *fakeSource) Poll(ctx context.Context, timeout time.Duration) (domain.Record, bool, error) {
	if n := s.polls.Add(1); n <= int64(s.pollErrs) {
		return domain.Record{}, false, errors.New("broker unavailable")
	}

	s.mu.Lock()
	for i := 0; i < len(s.parts); i++ {
		p := s.parts[(s.next+i)%len(s.parts)]
		log := s.broker.logs[p]
		if s.pos[p] < int64(len(log)) {
			rec := log[s.pos[p]]
			rec.ArrivedAt = time.Now()
			s.pos[p]++
			s.next = (s.next + i + 1) % len(s.parts)
			s.mu.Unlock()
			return rec, true, nil
		}
	}
	s.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return domain.Record{}, false, ctx.Err()
	case <-t.C:
		return domain.Record{}, false, nil
	}
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

// fakeAck пишет коммиты в брокер; fail позволяет уронить отдельные вызовы.
type fakeAck struct {
	broker *fakeBroker
	mu     sync.Mutex
	acks   []domain.Record
	fail   func(domain.Record) error
}

func (a *fakeAck) Acknowledge(_ context.Context, rec domain.Record) error {
	if a.fail != nil {
		if err := a.fail(rec); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.acks = append(a.acks, rec)
	a.mu.Unlock()

	if a.broker != nil {
		a.broker.mu.Lock()
		if rec.Offset > a.broker.committed[rec.Partition] {
			a.broker.committed[rec.Partition] = rec.Offset
		}
		a.broker.mu.Unlock()
	}
	return nil
}

func (a *fakeAck) offsets(partition int) []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []int64
	for _, r := range a.acks {
		if r.Partition == partition {
			out = append(out, r.Offset)
		}
	}
	return out
}

func (a *fakeAck) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

type fakeSink struct {
	mu      sync.Mutex
	saved   []domain.Record
	delay   time.Duration
	gate    chan struct{}
	fail    func(domain.Record) error
	entered atomic.Int64
}

func (s *fakeSink) SaveRecord(ctx context.Context, rec domain.Record) error {
	s.entered.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail != nil {
		if err := s.fail(rec); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.saved = append(s.saved, rec)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) savedCount(partition int, offset int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.saved {
		if r.Partition == partition && r.Offset == offset {
			n++
		}
	}
	return n
}

func (s *fakeSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func testConfig(topic string, concurrency, capacity int) Config {
	return Config{
		Topic:         topic,
		Concurrency:   concurrency,
		QueueCapacity: capacity,
		PollTimeout:   5 * time.Millisecond,
		RetryInitial:  time.Millisecond,
		RetryMax:      5 * time.Millisecond,
		Process: ProcessOptions{
			Timeout:      5 * time.Second,
			RetryInitial: time.Millisecond,
		},
	}
}

// runAsync запускает сессию и возвращает канал с результатом Run.
func runAsync(ctx context.Context, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

// serialAck ловит параллельные вызовы Acknowledge: своего мьютекса у него нет.
type serialAck struct {
	inflight atomic.Int64
	overlaps atomic.Int64
	calls    atomic.Int64
}

func (a *serialAck) Acknowledge(context.Context, domain.Record) error {
	if a.inflight.Add(1) > 1 {
		a.overlaps.Add(1)
	}
	a.calls.Add(1)
	time.Sleep(20 * time.Microsecond)
	a.inflight.Add(-1)
	return nil
}
