// Пакет ctxmeta - нейтральный слой для метаданных, которые прокидываются через context.Context:
// request_id HTTP-запроса, координаты обрабатываемой записи Kafka, номер воркера, trace/span.
// Логгер и транспортные слои зависят от этого пакета, но не друг от друга.
package ctxmeta

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	// Ключи контекста (неэкспортируемый тип - чтобы избежать коллизий).
	KeyRequestID ctxKey = "request_id"
	KeyRecord    ctxKey = "record"
	KeyWorker    ctxKey = "worker"
)

// RecordRef - координаты записи в брокере.
type RecordRef struct {
	Topic     string
	Partition int
	Offset    int64
}

// WithRequestID кладёт request_id в контекст (если пусто - ничего не делает).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// RequestIDFromContext достаёт request_id из контекста.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(KeyRequestID).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRecord кладёт координаты записи в контекст.
func WithRecord(ctx context.Context, ref RecordRef) context.Context {
	if ctx == nil || ref.Topic == "" {
		return ctx
	}
	return context.WithValue(ctx, KeyRecord, ref)
}

// RecordFromContext достаёт координаты записи.
func RecordFromContext(ctx context.Context) (RecordRef, bool) {
	if ctx == nil {
		return RecordRef{}, false
	}
	ref, ok := ctx.Value(KeyRecord).(RecordRef)
	return ref, ok
}

// WithWorker помечает контекст номером воркера пула (нумерация с 1).
func WithWorker(ctx context.Context, worker int) context.Context {
	if ctx == nil || worker <= 0 {
		return ctx
	}
	return context.WithValue(ctx, KeyWorker, worker)
}

// WorkerFromContext достаёт номер воркера.
func WorkerFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	w, ok := ctx.Value(KeyWorker).(int)
	return w, ok && w > 0
}

// TraceIDFromContext - trace_id активного спана (если он валиден).
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", false
	}
	return sc.TraceID().String(), true
}

// SpanIDFromContext - span_id активного спана.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", false
	}
	return sc.SpanID().String(), true
}
