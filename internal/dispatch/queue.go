package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

// ErrQueueClosed - запись в закрытую очередь.
var ErrQueueClosed = errors.New("dispatch: queue closed")

// DefaultQueueCapacity - ёмкость очереди по умолчанию.
const DefaultQueueCapacity = 1000

// Queue - ограниченная FIFO-очередь между источником и воркерами.
// Один писатель, много читателей. Полная очередь блокирует писателя.
type Queue struct {
	ch        chan domain.Record
	mu        sync.RWMutex
	closed    bool
	highWater atomic.Int64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan domain.Record, capacity)}
}

// Enqueue кладёт запись, ожидая место. Возвращает ошибку только при отмене ctx или закрытой очереди.
func (q *Queue) Enqueue(ctx context.Context, rec domain.Record) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- rec:
		q.observe(len(q.ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue блокируется до появления записи. После Close отдаёт остаток, затем ok=false.
func (q *Queue) Dequeue() (domain.Record, bool) {
	rec, ok := <-q.ch
	return rec, ok
}

// Close закрывает очередь. Ждёт завершения уже начатого Enqueue; повторный вызов ничего не делает.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }

// HighWater - максимальная наблюдавшаяся длина очереди.
func (q *Queue) HighWater() int { return int(q.highWater.Load()) }

func (q *Queue) observe(n int) {
	v := int64(n)
	for {
		cur := q.highWater.Load()
		if v <= cur || q.highWater.CompareAndSwap(cur, v) {
			return
		}
	}
}
