package config_test

import (
	"slices"
	"testing"
	"time"

	cfg "github.com/Gunvolt24/dispatch_bench/config"
)

// TestLoadWithPrefix_Defaults - проверка наличия значений по умолчанию.
func TestLoadWithPrefix_Defaults(t *testing.T) {
	t.Parallel()

	c, err := cfg.LoadWithPrefix("DISPATCH_TEST_DEFAULTS")
	if err != nil {
		t.Fatalf("LoadWithPrefix error: %v", err)
	}

	// HTTP
	if c.HTTP.Addr != ":8080" || c.HTTP.GinMode != "debug" {
		t.Fatalf("HTTP defaults wrong: %+v", c.HTTP)
	}
	if c.HTTP.ReadTimeout != 10*time.Second || c.HTTP.WriteTimeout != 10*time.Second {
		t.Fatalf("HTTP timeouts wrong: %+v", c.HTTP)
	}
	if c.HTTP.GracefulTimeout != 5*time.Second {
		t.Fatalf("HTTP.GracefulTimeout: want 5s, got %v", c.HTTP.GracefulTimeout)
	}
	if c.HTTP.HandlerTimeout != 3*time.Second {
		t.Fatalf("HTTP.HandlerTimeout: want 3s, got %v", c.HTTP.HandlerTimeout)
	}

	// Tracing
	if c.Tracing.Enabled || c.Tracing.ServiceName != "dispatch-bench" || c.Tracing.SampleRatio != 1 {
		t.Fatalf("Tracing defaults wrong: %+v", c.Tracing)
	}

	// Postgres
	if c.Postgres.DSN == "" || c.Postgres.MaxConns != 60 || !c.Postgres.AutoMigrate {
		t.Fatalf("Postgres defaults wrong: %+v", c.Postgres)
	}

	// Kafka
	if !slices.Equal(c.Kafka.Brokers, []string{"kafka:9092"}) {
		t.Fatalf("Kafka.Brokers: want [kafka:9092], got %v", c.Kafka.Brokers)
	}
	if c.Kafka.Topic != "benchmark-topic" || c.Kafka.Driver != "kafka-go" || c.Kafka.StartOffset != "first" {
		t.Fatalf("Kafka defaults wrong: %+v", c.Kafka)
	}
	if c.Kafka.PollTimeout != time.Second || c.Kafka.SessionTimeout != 30*time.Second || c.Kafka.HeartbeatInterval != 3*time.Second {
		t.Fatalf("Kafka timeouts wrong: %+v", c.Kafka)
	}

	// Dispatch
	if c.Dispatch.Concurrency != 50 || c.Dispatch.QueueCapacity != 1000 || c.Dispatch.CommitPolicy != "watermark" {
		t.Fatalf("Dispatch defaults wrong: %+v", c.Dispatch)
	}
	if c.Dispatch.ProcessTimeout != 5*time.Second || c.Dispatch.SinkRetries != 3 || c.Dispatch.ProgressEvery != 1000 {
		t.Fatalf("Dispatch processing defaults wrong: %+v", c.Dispatch)
	}
	if c.Dispatch.MaxPending != 10000 {
		t.Fatalf("Dispatch.MaxPending default wrong: %d", c.Dispatch.MaxPending)
	}

	// Logger
	if c.Logger.IsProd || c.Logger.File != "" {
		t.Fatalf("Logger defaults wrong: %+v", c.Logger)
	}
}

// Меняем окружение.
func TestLoadWithPrefix_Overrides(t *testing.T) {
	const p = "DISPATCH_TEST_OVR"

	t.Setenv(p+"_HTTP_ADDR", ":9999")
	t.Setenv(p+"_HTTP_GIN_MODE", "release")
	t.Setenv(p+"_TRACING_OTEL_ENABLED", "true")
	t.Setenv(p+"_TRACING_OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv(p+"_POSTGRES_MAX_CONNS", "42")
	t.Setenv(p+"_POSTGRES_AUTO_MIGRATE", "false")
	t.Setenv(p+"_KAFKA_BROKERS", "k1:9092,k2:9093")
	t.Setenv(p+"_KAFKA_DRIVER", "franz")
	t.Setenv(p+"_KAFKA_POLL_TIMEOUT", "250ms")
	t.Setenv(p+"_DISPATCH_CONCURRENCY", "1")
	t.Setenv(p+"_DISPATCH_QUEUE_CAPACITY", "64")
	t.Setenv(p+"_DISPATCH_COMMIT_POLICY", "immediate")
	t.Setenv(p+"_DISPATCH_PROCESS_TIMEOUT", "7s")
	t.Setenv(p+"_LOGGER_IS_PROD", "true")
	t.Setenv(p+"_LOGGER_FILE", "/var/log/dispatch.log")

	c, err := cfg.LoadWithPrefix(p)
	if err != nil {
		t.Fatalf("LoadWithPrefix error: %v", err)
	}

	if c.HTTP.Addr != ":9999" || c.HTTP.GinMode != "release" {
		t.Fatalf("HTTP overrides wrong: %+v", c.HTTP)
	}
	if !c.Tracing.Enabled || c.Tracing.SampleRatio != 0.25 {
		t.Fatalf("Tracing overrides wrong: %+v", c.Tracing)
	}
	if c.Postgres.MaxConns != 42 || c.Postgres.AutoMigrate {
		t.Fatalf("Postgres overrides wrong: %+v", c.Postgres)
	}
	if !slices.Equal(c.Kafka.Brokers, []string{"k1:9092", "k2:9093"}) || c.Kafka.Driver != "franz" ||
		c.Kafka.PollTimeout != 250*time.Millisecond {
		t.Fatalf("Kafka overrides wrong: %+v", c.Kafka)
	}
	if c.Dispatch.Concurrency != 1 || c.Dispatch.QueueCapacity != 64 ||
		c.Dispatch.CommitPolicy != "immediate" || c.Dispatch.ProcessTimeout != 7*time.Second {
		t.Fatalf("Dispatch overrides wrong: %+v", c.Dispatch)
	}
	if !c.Logger.IsProd || c.Logger.File != "/var/log/dispatch.log" {
		t.Fatalf("Logger overrides wrong: %+v", c.Logger)
	}
}

// Тоже меняем окружение - но с невалидным значением.
func TestLoadWithPrefix_InvalidValue_ReturnsError(t *testing.T) {
	const p = "DISPATCH_TEST_BAD"
	t.Setenv(p+"_DISPATCH_CONCURRENCY", "many")

	if _, err := cfg.LoadWithPrefix(p); err == nil {
		t.Fatalf("expected error for invalid int, got nil")
	}
}
