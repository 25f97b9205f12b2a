package ports

import (
	"context"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
)

// Dispatcher - сессия диспетчеризации: Run блокируется до отмены ctx и полного дренажа.
type Dispatcher interface {
	Run(ctx context.Context) error
	Close() error
}

// StatsProvider - read-only снимок счётчиков сессии (для /status).
type StatsProvider interface {
	Stats() domain.DispatchStats
}
