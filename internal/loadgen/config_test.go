package loadgen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	require.Equal(t, "benchmark-topic", cfg.Topic)
	require.Equal(t, "benchmark-producer", cfg.ClientID)
	require.Equal(t, 1000, cfg.MessagesPerSecond)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, 10*time.Second, cfg.StatsInterval)
	require.Zero(t, cfg.Total)
}

func TestLoadConfig_YAMLWithEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadgen.yaml")
	yml := `
brokers:
  - kafka-1:9092
topic: bench-yaml
messages_per_second: 250
total: 10000
stats_interval: 5s
metrics_addr: ":2113"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("LOADGEN_TOTAL", "500")
	t.Setenv("LOADGEN_BROKERS", "a:9092,b:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers)
	require.Equal(t, "bench-yaml", cfg.Topic)
	require.Equal(t, 250, cfg.MessagesPerSecond)
	require.EqualValues(t, 500, cfg.Total)
	require.Equal(t, 5*time.Second, cfg.StatsInterval)
	require.Equal(t, ":2113", cfg.MetricsAddr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("LOADGEN_TOTAL", "-1")
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfig_BrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("brokers: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
