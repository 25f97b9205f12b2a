package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gunvolt24/dispatch_bench/pkg/payload"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// fakeWriter - запоминает пачки; failFirst первых вызовов завершаются ошибкой.
type fakeWriter struct {
	mu        sync.Mutex
	batches   [][]kafka.Message
	failFirst int
	calls     int
	closed    bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failFirst {
		return errors.New("leader not available")
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) all() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []kafka.Message
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func TestGenerator_StopsAtTotal(t *testing.T) {
	w := &fakeWriter{}
	g := NewGenerator(w, Config{Topic: "bench", MessagesPerSecond: -1, BatchSize: 100, Total: 250}, nopLogger{})

	st, err := g.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 250, st.Sent)
	require.Zero(t, st.Failed)

	require.Len(t, w.batches, 3)
	require.Len(t, w.batches[2], 50)

	msgs := w.all()
	seen := make(map[string]struct{}, len(msgs))
	for i, m := range msgs {
		require.Equal(t, fmt.Sprintf("key-%d", i), string(m.Key))

		p, err := payload.Decode(m.Value)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("Benchmark message %d", i), p.Data)
		require.Len(t, p.Payload, payload.FillerSize)

		_, dup := seen[p.ID]
		require.False(t, dup, "duplicate id %s", p.ID)
		seen[p.ID] = struct{}{}
	}

	require.NoError(t, g.Close())
	require.True(t, w.closed)
}

func TestGenerator_WriteFailureIsNotFatal(t *testing.T) {
	w := &fakeWriter{failFirst: 1}
	g := NewGenerator(w, Config{Topic: "bench", MessagesPerSecond: -1, BatchSize: 100, Total: 200}, nopLogger{})

	st, err := g.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 100, st.Sent)
	require.EqualValues(t, 100, st.Failed)

	// вторая пачка продолжает нумерацию: неудачная не повторяется
	msgs := w.all()
	require.Len(t, msgs, 100)
	require.Equal(t, "key-100", string(msgs[0].Key))
}

func TestGenerator_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{}
	g := NewGenerator(w, Config{Topic: "bench", MessagesPerSecond: -1}, nopLogger{})

	st, err := g.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Sent)
	require.Zero(t, w.calls)
}

func TestGenerator_RespectsRate(t *testing.T) {
	w := &fakeWriter{}
	// burst = 50: первые 50 сразу, оставшиеся 10 не раньше чем через ~200ms
	g := NewGenerator(w, Config{Topic: "bench", MessagesPerSecond: 50, BatchSize: 100, Total: 60}, nopLogger{})

	start := time.Now()
	st, err := g.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 60, st.Sent)
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	require.Len(t, w.batches[0], 50)
}

func TestGenerator_RunsUntilCancel(t *testing.T) {
	w := &fakeWriter{}
	g := NewGenerator(w, Config{Topic: "bench", MessagesPerSecond: 1000, BatchSize: 10}, nopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	st, err := g.Run(ctx)
	require.NoError(t, err)
	require.Positive(t, st.Sent)
	require.Less(t, st.Sent, int64(1000))
	require.Positive(t, st.Rate())
}

func TestStats_Rate(t *testing.T) {
	require.Zero(t, Stats{Sent: 10}.Rate())
	require.InDelta(t, 5.0, Stats{Sent: 10, Elapsed: 2 * time.Second}.Rate(), 1e-9)
}
