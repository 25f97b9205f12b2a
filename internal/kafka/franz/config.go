package franz

import (
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kzap"
	"go.uber.org/zap"
)

// Config - параметры подписки через franz-go. Автокоммит всегда выключен.
type Config struct {
	Brokers           []string
	Topic             string
	GroupID           string
	StartOffset       string // first|last
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// Opts собирает опции kgo-клиента; логи клиента уходят в zap.
func (c Config) Opts(zl *zap.Logger) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.ConsumerGroup(c.GroupID),
		kgo.ConsumeTopics(c.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(resetOffset(c.StartOffset)),
	}
	if zl != nil {
		opts = append(opts, kgo.WithLogger(kzap.New(zl, kzap.Level(kgo.LogLevelWarn))))
	}
	if c.MinBytes > 0 {
		opts = append(opts, kgo.FetchMinBytes(int32(c.MinBytes)))
	}
	if c.MaxBytes > 0 {
		opts = append(opts, kgo.FetchMaxBytes(int32(c.MaxBytes)))
	}
	if c.MaxWait > 0 {
		opts = append(opts, kgo.FetchMaxWait(c.MaxWait))
	}
	if c.SessionTimeout > 0 {
		opts = append(opts, kgo.SessionTimeout(c.SessionTimeout))
	}
	if c.HeartbeatInterval > 0 {
		opts = append(opts, kgo.HeartbeatInterval(c.HeartbeatInterval))
	}
	return opts
}

// resetOffset - откуда читать, если у группы нет закоммиченного оффсета.
func resetOffset(s string) kgo.Offset {
	if strings.ToLower(strings.TrimSpace(s)) == "first" {
		return kgo.NewOffset().AtStart()
	}
	return kgo.NewOffset().AtEnd()
}
