package ports

import (
	"context"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

// RecordSink - контракт адаптера хранилища: превратить запись в сущность и сохранить её.
// Ошибка означает "не коммитить".
type RecordSink interface {
	SaveRecord(ctx context.Context, rec domain.Record) error
}
