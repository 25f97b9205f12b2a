package loadgen

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix - префикс переменных окружения генератора: LOADGEN_MESSAGES_PER_SECOND=500.
const EnvPrefix = "LOADGEN_"

// Config - профиль нагрузки.
type Config struct {
	Brokers           []string      `koanf:"brokers"`
	Topic             string        `koanf:"topic"`
	ClientID          string        `koanf:"client_id"`
	MessagesPerSecond int           `koanf:"messages_per_second"` // <= 0 - без ограничения
	Total             int64         `koanf:"total"`               // 0 - до остановки
	BatchSize         int           `koanf:"batch_size"`
	StatsInterval     time.Duration `koanf:"stats_interval"`
	MetricsAddr       string        `koanf:"metrics_addr"` // пусто - без /metrics
	IsProd            bool          `koanf:"is_prod"`
}

// LoadConfig читает YAML (если файл есть) и накрывает его переменными окружения LOADGEN_*.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// LOADGEN_BROKERS=a:9092,b:9092 - список через запятую
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "brokers" {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.validate()
}

func applyDefaults(c *Config) {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Topic == "" {
		c.Topic = "benchmark-topic"
	}
	if c.ClientID == "" {
		c.ClientID = "benchmark-producer"
	}
	if c.MessagesPerSecond == 0 {
		c.MessagesPerSecond = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 10 * time.Second
	}
}

func (c Config) validate() error {
	if c.Total < 0 {
		return fmt.Errorf("total must be >= 0, got %d", c.Total)
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return errors.New("empty broker address")
		}
	}
	return nil
}
