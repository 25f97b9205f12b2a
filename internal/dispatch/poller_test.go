package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollBackOff_GrowsUpToMax(t *testing.T) {
	b := newPollBackOff(10*time.Millisecond, 80*time.Millisecond)

	want := []time.Duration{10, 20, 40, 80, 80, 80}
	for i, base := range want {
		base *= time.Millisecond
		d := b.NextBackOff()
		require.GreaterOrEqual(t, d, base/2, "attempt %d", i)
		require.LessOrEqual(t, d, base+base/2, "attempt %d", i)
	}

	// Успешный опрос сбрасывает задержку.
	b.Reset()
	d := b.NextBackOff()
	require.LessOrEqual(t, d, 15*time.Millisecond)
}

func TestPollBackOff_Defaults(t *testing.T) {
	b := newPollBackOff(0, 0)
	require.Equal(t, 100*time.Millisecond, b.InitialInterval)
	require.Equal(t, 10*time.Second, b.MaxInterval)
	require.Zero(t, b.MaxElapsedTime)
}
