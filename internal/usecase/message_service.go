package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/payload"
	"github.com/google/uuid"
)

var _ ports.RecordSink = (*MessageService)(nil)

// MessageService - преобразование записи брокера в сущность и её сохранение.
type MessageService struct {
	repo  ports.MessageRepository
	log   ports.Logger
	now   func() time.Time
	newID func() string
}

// NewMessageService - DI-конструктор.
func NewMessageService(repo ports.MessageRepository, log ports.Logger) *MessageService {
	return &MessageService{
		repo:  repo,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SaveRecord - одна запись, одна строка. Ошибка означает «не коммитить».
func (s *MessageService) SaveRecord(ctx context.Context, rec domain.Record) error {
	e := s.ToEntity(rec)
	if err := s.repo.Save(ctx, &e); err != nil {
		return fmt.Errorf("save %s: %w", rec.Coordinates(), err)
	}
	return nil
}

// ToEntity собирает сущность. CorrelationID: id из тела сообщения бенчмарка,
// иначе ключ записи, иначе topic/partition/offset.
func (s *MessageService) ToEntity(rec domain.Record) domain.Entity {
	received := rec.ArrivedAt
	if received.IsZero() {
		received = s.now()
	}
	return domain.Entity{
		ID:            s.newID(),
		CorrelationID: correlationID(rec),
		Content:       sanitize(rec.Value),
		ReceivedAt:    received.UTC(),
		ProcessedAt:   s.now().UTC(),
		Topic:         rec.Topic,
		Partition:     rec.Partition,
		Offset:        rec.Offset,
	}
}

// CountSince - сколько строк сохранено с момента since (отчёт о пропускной способности).
func (s *MessageService) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.CountSince(ctx, since)
}

func correlationID(rec domain.Record) string {
	if id, err := payload.CorrelationID(rec.Value); err == nil {
		return id
	}
	if len(rec.Key) > 0 {
		return string(rec.Key)
	}
	return rec.Coordinates()
}

// sanitize - TEXT в Postgres не принимает NUL и невалидный UTF-8.
func sanitize(v []byte) string {
	s := strings.ToValidUTF8(string(v), "�")
	return strings.ReplaceAll(s, "\x00", "")
}
