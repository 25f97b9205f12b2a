package ports

import (
	"context"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

// MessageRepository - append-only хранилище сущностей.
type MessageRepository interface {
	Save(ctx context.Context, entity *domain.Entity) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
