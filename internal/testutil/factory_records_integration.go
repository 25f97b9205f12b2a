//go:build integration

package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/pkg/payload"
)

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func UniqSuffix() string { return randHex(6) }

// MakePayload - JSON-тело сообщения бенчмарка с уникальным id.
func MakePayload(seq int64) (id string, raw []byte) {
	id = "msg-" + UniqSuffix()
	raw, _ = payload.Encode(payload.New(id, seq, time.Now()))
	return id, raw
}

// MakeEntity - сущность для прямой записи в репозиторий.
func MakeEntity(opts ...func(*domain.Entity)) domain.Entity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := domain.Entity{
		ID:            "ent-" + UniqSuffix(),
		CorrelationID: "msg-" + UniqSuffix(),
		Content:       `{"id":"x"}`,
		ReceivedAt:    now,
		ProcessedAt:   now,
		Topic:         "bench",
		Partition:     0,
		Offset:        0,
	}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func WithOffset(partition int, offset int64) func(*domain.Entity) {
	return func(e *domain.Entity) {
		e.Partition = partition
		e.Offset = offset
	}
}

func WithProcessedAt(t time.Time) func(*domain.Entity) {
	return func(e *domain.Entity) { e.ProcessedAt = t }
}
