package loadgen

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/Gunvolt24/dispatch_bench/pkg/payload"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

// Writer - то, что нужно генератору от kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter - writer для топика; ключ key-N раскладывается по партициям хешем.
func NewKafkaWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: false,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// Stats - итог работы генератора.
type Stats struct {
	Sent    int64
	Failed  int64
	Elapsed time.Duration
}

// Rate - сообщений в секунду за всё время работы.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Sent) / s.Elapsed.Seconds()
}

// Generator публикует синтетические сообщения с заданной скоростью.
type Generator struct {
	w       Writer
	cfg     Config
	log     ports.Logger
	limiter *rate.Limiter
	now     func() time.Time

	seq    atomic.Int64 // номер следующего сообщения, он же суффикс ключа
	sent   atomic.Int64
	failed atomic.Int64
}

func NewGenerator(w Writer, cfg Config, log ports.Logger) *Generator {
	applyDefaults(&cfg)

	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	burst := cfg.BatchSize
	if cfg.MessagesPerSecond > 0 && cfg.MessagesPerSecond < burst {
		burst = cfg.MessagesPerSecond
	}

	return &Generator{
		w:       w,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Run публикует пачки до отмены ctx или до Total сообщений.
// Ошибка записи логируется, генератор продолжает; неотправленная пачка не повторяется. Отмена не ошибка.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	start := g.now()
	lastReport := start

	g.log.Infof(ctx, "producing %d msg/s to topic=%s brokers=%v total=%d",
		g.cfg.MessagesPerSecond, g.cfg.Topic, g.cfg.Brokers, g.cfg.Total)

	for ctx.Err() == nil {
		n := g.nextBatchSize()
		if n == 0 {
			break
		}
		if err := g.limiter.WaitN(ctx, n); err != nil {
			break
		}

		msgs, err := g.batch(n)
		if err != nil {
			return g.stats(start), err
		}

		if err := g.w.WriteMessages(ctx, msgs...); err != nil {
			if ctx.Err() != nil {
				break
			}
			g.failed.Add(int64(n))
			g.log.Errorf(ctx, "write %d messages to %s: %v", n, g.cfg.Topic, err)
			continue
		}
		g.sent.Add(int64(n))
		metrics.MessagesProduced.WithLabelValues(g.cfg.Topic).Add(float64(n))

		if now := g.now(); now.Sub(lastReport) >= g.cfg.StatsInterval {
			lastReport = now
			st := g.stats(start)
			g.log.Infof(ctx, "sent %d messages in %.1fs (%.1f msg/s)", st.Sent, st.Elapsed.Seconds(), st.Rate())
		}
	}

	st := g.stats(start)
	g.log.Infof(context.WithoutCancel(ctx), "final stats: %d messages in %.1fs (%.1f msg/s), failed=%d",
		st.Sent, st.Elapsed.Seconds(), st.Rate(), st.Failed)
	return st, nil
}

// Close закрывает writer: kafka.Writer досылает буфер.
func (g *Generator) Close() error {
	return g.w.Close()
}

func (g *Generator) nextBatchSize() int {
	n := int64(g.cfg.BatchSize)
	if g.limiter.Burst() < int(n) {
		n = int64(g.limiter.Burst())
	}
	if g.cfg.Total > 0 {
		left := g.cfg.Total - g.seq.Load()
		if left <= 0 {
			return 0
		}
		n = min(n, left)
	}
	return int(n)
}

func (g *Generator) batch(n int) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, n)
	for range n {
		seq := g.seq.Add(1) - 1
		now := g.now()

		id := fmt.Sprintf("msg-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
		raw, err := payload.Encode(payload.New(id, seq, now))
		if err != nil {
			return nil, fmt.Errorf("encode message %d: %w", seq, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(fmt.Sprintf("key-%d", seq)),
			Value: raw,
			Time:  now,
		})
	}
	return msgs, nil
}

func (g *Generator) stats(start time.Time) Stats {
	return Stats{
		Sent:    g.sent.Load(),
		Failed:  g.failed.Load(),
		Elapsed: g.now().Sub(start),
	}
}
