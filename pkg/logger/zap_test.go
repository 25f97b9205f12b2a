package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_AddsRecordFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := newWithLogger(zap.New(core), false)

	ctx := ctxmeta.WithRecord(context.Background(), ctxmeta.RecordRef{Topic: "bench", Partition: 2, Offset: 10})
	ctx = ctxmeta.WithWorker(ctx, 4)
	l.Warnf(ctx, "persist failed: %s", "boom")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "persist failed: boom", entry.Message)
	require.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	require.Equal(t, "bench", fields["topic"])
	require.EqualValues(t, 2, fields["partition"])
	require.EqualValues(t, 10, fields["offset"])
	require.EqualValues(t, 4, fields["worker"])
}

func TestZapLogger_NoMetadata_NoFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := newWithLogger(zap.New(core), false)

	l.Infof(context.Background(), "hello %d", 1)

	require.Equal(t, 1, logs.Len())
	require.Empty(t, logs.All()[0].Context)
}

func TestNewZapLogger_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.log")

	l, cleanup, err := NewZapLogger(true, path)
	require.NoError(t, err)
	l.Infof(context.Background(), "written to file")
	_ = cleanup()

	require.FileExists(t, path)
}
