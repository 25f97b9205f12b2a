package domain

import (
	"strconv"
	"time"
)

// Record - неизменяемая единица, полученная из брокера.
// После создания не модифицируется; владеет им та стадия, которая держит его сейчас.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	ArrivedAt time.Time // момент получения записи источником
}

// Coordinates - "topic/partition/offset" для логов и корреляции.
func (r Record) Coordinates() string {
	return r.Topic + "/" + strconv.Itoa(r.Partition) + "/" + strconv.FormatInt(r.Offset, 10)
}

// Entity - долговременная форма записи в хранилище (append-only, одна на Record).
type Entity struct {
	ID            string    // сгенерированный идентификатор (uuid)
	CorrelationID string    // id из полезной нагрузки / ключ / координаты записи
	Content       string    // исходное значение сообщения
	ReceivedAt    time.Time // когда запись пришла из брокера
	ProcessedAt   time.Time // когда сущность построена и отправлена в хранилище

	Topic     string
	Partition int
	Offset    int64
}
