package ctxmeta_test

import (
	"context"
	"testing"

	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestWithRequestID_PutAndGet(t *testing.T) {
	parent := context.Background()

	ctx := ctxmeta.WithRequestID(parent, "req-123")
	got, ok := ctxmeta.RequestIDFromContext(ctx)
	if !ok || got != "req-123" {
		t.Fatalf("want ok=true, id=req-123; got ok=%v id=%q", ok, got)
	}

	// Родитель не должен содержать request_id
	if _, parentOk := ctxmeta.RequestIDFromContext(parent); parentOk {
		t.Fatalf("parent context must not contain request_id")
	}
}

func TestWithRequestID_EmptyID_NoChange(t *testing.T) {
	parent := context.Background()
	if ctx := ctxmeta.WithRequestID(parent, ""); ctx != parent {
		t.Fatalf("WithRequestID with empty id must return the same ctx")
	}
}

func TestWithRecord_PutAndGet(t *testing.T) {
	ref := ctxmeta.RecordRef{Topic: "bench", Partition: 3, Offset: 42}
	ctx := ctxmeta.WithRecord(context.Background(), ref)

	got, ok := ctxmeta.RecordFromContext(ctx)
	if !ok || got != ref {
		t.Fatalf("want %+v, got %+v (ok=%v)", ref, got, ok)
	}
}

func TestWithRecord_EmptyTopic_NoChange(t *testing.T) {
	parent := context.Background()
	if ctx := ctxmeta.WithRecord(parent, ctxmeta.RecordRef{Partition: 1}); ctx != parent {
		t.Fatalf("record without topic must not be stored")
	}
	if _, ok := ctxmeta.RecordFromContext(parent); ok {
		t.Fatalf("empty ctx must not contain record")
	}
}

func TestWithWorker(t *testing.T) {
	ctx := ctxmeta.WithWorker(context.Background(), 7)
	if w, ok := ctxmeta.WorkerFromContext(ctx); !ok || w != 7 {
		t.Fatalf("want worker 7, got %d (ok=%v)", w, ok)
	}

	// нулевой номер воркера игнорируется
	parent := context.Background()
	if ctx := ctxmeta.WithWorker(parent, 0); ctx != parent {
		t.Fatalf("worker=0 must not change ctx")
	}
}

func TestRequestIDFromContext_ForeignKeyType(t *testing.T) {
	type otherKey struct{}
	ctx := context.WithValue(context.Background(), otherKey{}, "req-xyz")
	if id, ok := ctxmeta.RequestIDFromContext(ctx); ok || id != "" {
		t.Fatalf("foreign key must not be recognized, got id=%q ok=%v", id, ok)
	}
}

func TestTraceAndSpanIDs_FromContext(t *testing.T) {
	// Локальный TracerProvider - без глобальной настройки.
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	traceID, ok := ctxmeta.TraceIDFromContext(ctx)
	if !ok || traceID != span.SpanContext().TraceID().String() {
		t.Fatalf("traceID=%s ok=%v, want %s", traceID, ok, span.SpanContext().TraceID())
	}
	spanID, ok := ctxmeta.SpanIDFromContext(ctx)
	if !ok || spanID != span.SpanContext().SpanID().String() {
		t.Fatalf("spanID=%s ok=%v, want %s", spanID, ok, span.SpanContext().SpanID())
	}
}

func TestTraceAndSpanIDs_NoSpan(t *testing.T) {
	if id, ok := ctxmeta.TraceIDFromContext(context.Background()); ok || id != "" {
		t.Fatalf("TraceIDFromContext(background) => %q,%v; want \"\", false", id, ok)
	}
	if id, ok := ctxmeta.SpanIDFromContext(context.Background()); ok || id != "" {
		t.Fatalf("SpanIDFromContext(background) => %q,%v; want \"\", false", id, ok)
	}
}
