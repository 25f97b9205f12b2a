// Package dispatch - движок раздачи записей: чтение из брокера, очередь, воркеры и коммит оффсетов.
package dispatch

import (
	"context"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

// RecordSource - опрос подписки на топик. Оффсеты сам не коммитит.
type RecordSource interface {
	// Subscribe проверяет доступность брокера и наличие топика.
	Subscribe(ctx context.Context) error
	// Poll ждёт запись не дольше timeout. По таймауту возвращает (_, false, nil).
	Poll(ctx context.Context, timeout time.Duration) (domain.Record, bool, error)
	Close() error
}

// Acknowledger - коммит оффсета в брокер: подтверждает все записи партиции до rec.Offset включительно.
// Не потокобезопасен, вызовы сериализует CommitCoordinator.
type Acknowledger interface {
	Acknowledge(ctx context.Context, rec domain.Record) error
}
