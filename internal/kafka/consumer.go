package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/dispatch"
	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/segmentio/kafka-go"
)

// Consumer - источник записей и коммиттер оффсетов поверх kafka.Reader.
var (
	_ dispatch.RecordSource = (*Consumer)(nil)
	_ dispatch.Acknowledger = (*Consumer)(nil)
)

// reader - минимальный контракт над kafka.Reader, чтобы подменять его моками в тестах.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// metadataConn - соединение с брокером для проверки топика (*kafka.Conn).
type metadataConn interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (metadataConn, error)

func dialKafka(timeout time.Duration) dialFunc {
	d := &kafka.Dialer{Timeout: timeout}
	return func(ctx context.Context, network, address string) (metadataConn, error) {
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Consumer - обёртка над kafka.Reader.
type Consumer struct {
	reader    reader
	dial      dialFunc
	log       ports.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer - конструктор. Reader настроен на ручной коммит оффсетов.
func NewConsumer(cfg *ConsumerConfig, log ports.Logger) *Consumer {
	rc := cfg.ReaderConfig()
	rc.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) {
		log.Errorf(context.Background(), "kafka-go: "+msg, args...)
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	return &Consumer{
		reader: kafka.NewReader(rc),
		dial:   dialKafka(dialTimeout),
		log:    log,
	}
}

// Subscribe проверяет, что хотя бы один брокер доступен и у топика есть партиции.
func (c *Consumer) Subscribe(ctx context.Context) error {
	rc := c.reader.Config()
	if len(rc.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range rc.Brokers {
		conn, err := c.dial(ctx, "tcp", addr)
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", addr, err)
			continue
		}
		parts, err := conn.ReadPartitions(rc.Topic)
		_ = conn.Close()
		if err != nil {
			lastErr = fmt.Errorf("read partitions of %s: %w", rc.Topic, err)
			continue
		}
		if len(parts) == 0 {
			return fmt.Errorf("topic %s has no partitions", rc.Topic)
		}

		c.log.Infof(ctx, "kafka consumer subscribed topic=%s group_id=%s partitions=%d brokers=%v",
			rc.Topic, rc.GroupID, len(parts), rc.Brokers)
		return nil
	}
	return lastErr
}

// Poll читает следующее сообщение без коммита. Таймаут - не ошибка.
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) (domain.Record, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.reader.FetchMessage(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Record{}, false, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Record{}, false, nil
		}
		return domain.Record{}, false, err
	}

	return toRecord(msg), true, nil
}

// Acknowledge коммитит оффсет записи для группы (kafka-go коммитит Offset+1).
func (c *Consumer) Acknowledge(ctx context.Context, rec domain.Record) error {
	return c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	})
}

// Close - закрывает reader. Повторные вызовы возвращают первый результат.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}

func toRecord(msg kafka.Message) domain.Record {
	return domain.Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		ArrivedAt: time.Now(),
	}
}
