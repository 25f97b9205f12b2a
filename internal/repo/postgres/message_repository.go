package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Проверка, что MessageRepository удовлетворяет интерфейсу MessageRepository.
var _ ports.MessageRepository = (*MessageRepository)(nil)

// MessageRepository - append-only хранилище сообщений на Postgres (pgxpool).
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository - конструктор MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const insertMessage = `
	INSERT INTO messages (
		message_id, correlation_id, content, received_at, processed_at,
		topic, kafka_partition, kafka_offset
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Save - вставка одной строки. Соединение берётся из пула на время вызова и
// возвращается на любом пути выхода. Дубликаты допустимы (at-least-once).
func (r *MessageRepository) Save(ctx context.Context, e *domain.Entity) error {
	if e == nil || e.ID == "" {
		return errors.New("entity is empty or id is required")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, insertMessage,
		e.ID, e.CorrelationID, e.Content, e.ReceivedAt, e.ProcessedAt,
		e.Topic, e.Partition, e.Offset,
	); err != nil {
		return fmt.Errorf("insert message %s: %w", e.ID, err)
	}
	return nil
}

// CountSince - число строк, сохранённых начиная с since.
func (r *MessageRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE processed_at >= $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
