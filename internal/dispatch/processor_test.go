package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, retries int) (*Processor, *mocks.MockRecordSink, *Counters) {
	t.Helper()
	sink := mocks.NewMockRecordSink(gomock.NewController(t))
	counters := &Counters{}
	p := newProcessor(sink, nopLogger{}, counters, "bench", StrategyPool, ProcessOptions{
		Timeout:      time.Second,
		Retries:      retries,
		RetryInitial: time.Millisecond,
	})
	return p, sink, counters
}

func TestProcessor_RetriesThenSucceeds(t *testing.T) {
	p, sink, counters := newTestProcessor(t, 3)

	gomock.InOrder(
		sink.EXPECT().SaveRecord(gomock.Any(), rec(0, 7)).Return(errors.New("deadlock detected")),
		sink.EXPECT().SaveRecord(gomock.Any(), rec(0, 7)).Return(nil),
	)

	require.NoError(t, p.Handle(context.Background(), rec(0, 7)))
	require.EqualValues(t, 1, counters.Processed())
	require.Zero(t, counters.Failed())
}

func TestProcessor_GivesUpAfterRetries(t *testing.T) {
	p, sink, counters := newTestProcessor(t, 2)

	sink.EXPECT().SaveRecord(gomock.Any(), rec(1, 3)).Return(errors.New("connection refused")).Times(3)

	require.Error(t, p.Handle(context.Background(), rec(1, 3)))
	require.Zero(t, counters.Processed())
	require.EqualValues(t, 1, counters.Failed())
}

func TestProcessor_AttemptHasDeadline(t *testing.T) {
	p, sink, _ := newTestProcessor(t, 0)

	sink.EXPECT().SaveRecord(gomock.Any(), rec(0, 0)).DoAndReturn(
		func(ctx context.Context, _ domain.Record) error {
			_, ok := ctx.Deadline()
			require.True(t, ok, "sink call must be bounded by the process timeout")
			return nil
		})

	require.NoError(t, p.Handle(context.Background(), rec(0, 0)))
}
