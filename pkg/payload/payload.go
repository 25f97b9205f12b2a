// Package payload - формат синтетических сообщений бенчмарка.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotBenchmarkPayload - значение не является JSON-объектом бенчмарка с непустым id.
var ErrNotBenchmarkPayload = errors.New("not a benchmark payload")

// FillerSize - размер поля payload, чтобы сообщения были одинаковой длины.
const FillerSize = 100

// Message - тело сообщения, которое публикует генератор нагрузки.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
	Payload   string    `json:"payload"`
}

// New собирает сообщение с порядковым номером seq.
func New(id string, seq int64, now time.Time) Message {
	return Message{
		ID:        id,
		Timestamp: now.UTC(),
		Data:      fmt.Sprintf("Benchmark message %d", seq),
		Payload:   strings.Repeat("x", FillerSize),
	}
}

// Encode сериализует сообщение в JSON.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode разбирает значение записи. Пустой id считается ошибкой.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrNotBenchmarkPayload, err)
	}
	if strings.TrimSpace(m.ID) == "" {
		return Message{}, fmt.Errorf("%w: empty id", ErrNotBenchmarkPayload)
	}
	return m, nil
}

// CorrelationID - id из тела сообщения, если это сообщение бенчмарка.
func CorrelationID(raw []byte) (string, error) {
	m, err := Decode(raw)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}
