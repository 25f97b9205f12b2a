package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
)

// CommitPolicy - правило, по которому завершённая запись превращается в коммит оффсета.
type CommitPolicy string

const (
	// PolicyWatermark коммитит максимальный оффсет, все доставленные предшественники которого сохранены.
	PolicyWatermark CommitPolicy = "watermark"
	// PolicyImmediate коммитит каждую запись сразу после сохранения, в порядке завершения.
	PolicyImmediate CommitPolicy = "immediate"
)

// ParseCommitPolicy разбирает значение из конфига; пустая строка - watermark.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch CommitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyWatermark:
		return PolicyWatermark, nil
	case PolicyImmediate:
		return PolicyImmediate, nil
	default:
		return "", fmt.Errorf("unknown commit policy %q", s)
	}
}

// DefaultMaxPending - предел ожидающих коммита оффсетов одной партиции (watermark).
const DefaultMaxPending = 10000

// ErrPendingLimit - партиция упёрлась в несохранённую запись: watermark не двигается,
// а ожидающих оффсетов набралось maxPending. Сессия останавливается, после рестарта
// брокер доставит запись заново.
var ErrPendingLimit = errors.New("pending offsets limit reached")

type partitionKey struct {
	topic     string
	partition int
}

type pendingOffset struct {
	offset int64
	done   bool
	failed bool // обработка не удалась, оффсет не будет сохранён в этой сессии
}

// cursor - курсор оффсетов одной партиции.
type cursor struct {
	// pending и lastTracked - под stateMu.
	pending     []pendingOffset
	lastTracked int64

	// committed, carry, failedTarget - под commitMu.
	committed    int64
	carry        int64
	failedTarget int64
}

func newCursor() *cursor {
	return &cursor{lastTracked: -1, committed: -1, failedTarget: -1}
}

// CommitCoordinator - владелец курсоров оффсетов. Коммит в брокер выполняется строго по одному.
type CommitCoordinator struct {
	ack        Acknowledger
	policy     CommitPolicy
	log        ports.Logger
	maxPending int

	stateMu sync.Mutex
	drained *sync.Cond // на stateMu: pending партиции уменьшился или голова упала
	cursors map[partitionKey]*cursor

	commitMu sync.Mutex

	committed atomic.Int64
	calls     atomic.Int64
	failures  atomic.Int64
}

// NewCommitCoordinator - maxPending <= 0 означает DefaultMaxPending.
func NewCommitCoordinator(ack Acknowledger, policy CommitPolicy, maxPending int, log ports.Logger) *CommitCoordinator {
	if policy == "" {
		policy = PolicyWatermark
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	c := &CommitCoordinator{
		ack:        ack,
		policy:     policy,
		log:        log,
		maxPending: maxPending,
		cursors:    make(map[partitionKey]*cursor),
	}
	c.drained = sync.NewCond(&c.stateMu)
	return c
}

func (c *CommitCoordinator) Policy() CommitPolicy { return c.policy }

// Track регистрирует доставленную запись. Вызывается источником до передачи записи дальше,
// в порядке доставки. Оффсет не больше последнего означает повторную доставку (ребаланс,
// рестарт): ожидающие оффсеты партиции сбрасываются.
//
// При watermark на партицию ожидают не больше maxPending оффсетов: на пределе Track ждёт,
// пока голова партиции сохранится. Если голова уже не сохранится (Fail), возвращается
// ErrPendingLimit. Запись, для которой Track вернул ошибку, не обрабатывается.
func (c *CommitCoordinator) Track(ctx context.Context, rec domain.Record) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	cur := c.cursorLocked(rec)
	if rec.Offset <= cur.lastTracked {
		cur.pending = nil
	}
	if c.policy == PolicyWatermark {
		if err := c.waitRoomLocked(ctx, cur, rec); err != nil {
			return err
		}
		cur.pending = append(cur.pending, pendingOffset{offset: rec.Offset})
	}
	cur.lastTracked = rec.Offset
	return nil
}

// waitRoomLocked ждёт места в pending партиции. Только под stateMu.
func (c *CommitCoordinator) waitRoomLocked(ctx context.Context, cur *cursor, rec domain.Record) error {
	if len(cur.pending) < c.maxPending {
		return nil
	}
	stop := context.AfterFunc(ctx, func() {
		c.stateMu.Lock()
		c.drained.Broadcast()
		c.stateMu.Unlock()
	})
	defer stop()

	for len(cur.pending) >= c.maxPending {
		if cur.pending[0].failed {
			return fmt.Errorf("%w: %s blocked by offset %d, %d pending",
				ErrPendingLimit, rec.Coordinates(), cur.pending[0].offset, len(cur.pending))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.drained.Wait()
	}
	return nil
}

// Fail отмечает запись, которую не удалось сохранить. Её оффсет держит watermark партиции
// до конца сессии.
func (c *CommitCoordinator) Fail(rec domain.Record) {
	if c.policy != PolicyWatermark {
		return
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	cur := c.cursorLocked(rec)
	for i := range cur.pending {
		if cur.pending[i].offset == rec.Offset && !cur.pending[i].done {
			cur.pending[i].failed = true
			break
		}
	}
	c.drained.Broadcast()
}

// Commit отмечает запись сохранённой и коммитит оффсет по политике.
// Ошибка брокера логируется и возвращается; повтора нет, его перекроет следующий коммит.
func (c *CommitCoordinator) Commit(ctx context.Context, rec domain.Record) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if c.policy == PolicyImmediate {
		return c.commitImmediate(ctx, rec)
	}
	return c.commitWatermark(ctx, rec)
}

func (c *CommitCoordinator) commitImmediate(ctx context.Context, rec domain.Record) error {
	c.stateMu.Lock()
	cur := c.cursorLocked(rec)
	c.stateMu.Unlock()

	if rec.Offset <= cur.committed {
		// Уже покрыт коммитом большего оффсета.
		c.committed.Add(1)
		metrics.CommitsTotal.WithLabelValues(rec.Topic, metrics.CommitSuperseded).Inc()
		return nil
	}

	if err := c.acknowledge(ctx, rec); err != nil {
		return err
	}
	cur.committed = rec.Offset
	c.committed.Add(1)
	return nil
}

func (c *CommitCoordinator) commitWatermark(ctx context.Context, rec domain.Record) error {
	c.stateMu.Lock()
	cur := c.cursorLocked(rec)
	markDone(cur, rec.Offset)
	covered, target := popDone(cur)
	if covered > 0 {
		c.drained.Broadcast()
	}
	c.stateMu.Unlock()

	if covered == 0 {
		// Ждём более ранние оффсеты партиции.
		return nil
	}
	if target <= cur.committed {
		c.committed.Add(covered)
		metrics.CommitsTotal.WithLabelValues(rec.Topic, metrics.CommitSuperseded).Inc()
		return nil
	}

	at := domain.Record{Topic: rec.Topic, Partition: rec.Partition, Offset: target}
	if err := c.acknowledge(ctx, at); err != nil {
		cur.carry += covered
		cur.failedTarget = target
		return err
	}
	c.committed.Add(covered + cur.carry)
	cur.carry = 0
	cur.failedTarget = -1
	cur.committed = target
	return nil
}

// Flush повторяет неудавшиеся коммиты, которые не перекрыл более поздний. Вызывается при остановке.
func (c *CommitCoordinator) Flush(ctx context.Context) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.stateMu.Lock()
	retry := make(map[partitionKey]*cursor)
	for k, cur := range c.cursors {
		if cur.carry > 0 && cur.failedTarget > cur.committed {
			retry[k] = cur
		}
	}
	c.stateMu.Unlock()

	var firstErr error
	for k, cur := range retry {
		at := domain.Record{Topic: k.topic, Partition: k.partition, Offset: cur.failedTarget}
		if err := c.acknowledge(ctx, at); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.committed.Add(cur.carry)
		cur.carry = 0
		cur.committed = cur.failedTarget
		cur.failedTarget = -1
	}
	return firstErr
}

// acknowledge - один вызов брокера. Только под commitMu.
func (c *CommitCoordinator) acknowledge(ctx context.Context, at domain.Record) error {
	c.calls.Add(1)
	if err := c.ack.Acknowledge(ctx, at); err != nil {
		c.failures.Add(1)
		metrics.CommitsTotal.WithLabelValues(at.Topic, metrics.CommitFailed).Inc()
		ctx = ctxmeta.WithRecord(ctx, ctxmeta.RecordRef{Topic: at.Topic, Partition: at.Partition, Offset: at.Offset})
		c.log.Warnf(ctx, "commit failed %s: %v", at.Coordinates(), err)
		return fmt.Errorf("commit %s: %w", at.Coordinates(), err)
	}
	metrics.CommitsTotal.WithLabelValues(at.Topic, metrics.CommitOK).Inc()
	return nil
}

func (c *CommitCoordinator) cursorLocked(rec domain.Record) *cursor {
	k := partitionKey{topic: rec.Topic, partition: rec.Partition}
	cur, ok := c.cursors[k]
	if !ok {
		cur = newCursor()
		c.cursors[k] = cur
	}
	return cur
}

// markDone отмечает первый незавершённый pending с этим оффсетом.
// Запись без Track (или сброшенная повторной доставкой) добавляется как завершённая, если она новее хвоста.
func markDone(cur *cursor, offset int64) {
	for i := range cur.pending {
		if cur.pending[i].offset == offset && !cur.pending[i].done {
			cur.pending[i].done = true
			cur.pending[i].failed = false
			return
		}
	}
	if len(cur.pending) == 0 && offset > cur.lastTracked {
		cur.lastTracked = offset
		cur.pending = append(cur.pending, pendingOffset{offset: offset, done: true})
	}
}

// popDone снимает завершённый префикс; возвращает число снятых записей и последний оффсет.
func popDone(cur *cursor) (int64, int64) {
	n := 0
	for n < len(cur.pending) && cur.pending[n].done {
		n++
	}
	if n == 0 {
		return 0, -1
	}
	target := cur.pending[n-1].offset
	cur.pending = cur.pending[n:]
	return int64(n), target
}

// Committed - число записей, покрытых успешными коммитами.
func (c *CommitCoordinator) Committed() int64 { return c.committed.Load() }

// CommitCalls - число вызовов брокера.
func (c *CommitCoordinator) CommitCalls() int64 { return c.calls.Load() }

func (c *CommitCoordinator) CommitFailures() int64 { return c.failures.Load() }

// Pending - записи, ждущие коммита (только watermark).
func (c *CommitCoordinator) Pending() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	n := 0
	for _, cur := range c.cursors {
		n += len(cur.pending)
	}
	return n
}
