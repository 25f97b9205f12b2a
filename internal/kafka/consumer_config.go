package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig - параметры подписки. Коммит оффсетов всегда ручной.
type ConsumerConfig struct {
	Brokers           []string
	Topic             string
	GroupID           string
	StartOffset       string // first|last, по умолчанию last
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
}

// ReaderConfig собирает конфиг kafka.Reader. CommitInterval=0 - синхронный CommitMessages.
func (c *ConsumerConfig) ReaderConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:           c.Brokers,
		GroupID:           c.GroupID,
		Topic:             c.Topic,
		MinBytes:          c.MinBytes,
		MaxBytes:          c.MaxBytes,
		MaxWait:           c.MaxWait,
		SessionTimeout:    c.SessionTimeout,
		HeartbeatInterval: c.HeartbeatInterval,
		CommitInterval:    0,
	}

	switch strings.ToLower(strings.TrimSpace(c.StartOffset)) {
	case "first":
		rc.StartOffset = kafka.FirstOffset
	default:
		rc.StartOffset = kafka.LastOffset
	}

	return rc
}
