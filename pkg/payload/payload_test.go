package payload

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_FillsBody(t *testing.T) {
	now := time.Date(2025, 6, 25, 14, 25, 10, 0, time.UTC)
	m := New("msg-1", 7, now)

	require.Equal(t, "msg-1", m.ID)
	require.Equal(t, "Benchmark message 7", m.Data)
	require.Len(t, m.Payload, FillerSize)
	require.True(t, m.Timestamp.Equal(now))
}

func TestCorrelationID_FromEncoded(t *testing.T) {
	raw, err := Encode(New("msg-42", 42, time.Now()))
	require.NoError(t, err)

	id, err := CorrelationID(raw)
	require.NoError(t, err)
	require.Equal(t, "msg-42", id)
}

func TestCorrelationID_NotBenchmark(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"plain":     []byte("hello"),
		"no id":     []byte(`{"data":"x"}`),
		"blank id":  []byte(`{"id":"  "}`),
		"json list": []byte(`[1,2,3]`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CorrelationID(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrNotBenchmarkPayload))
		})
	}
}
