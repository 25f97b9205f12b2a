// Package franz - источник записей поверх twmb/franz-go.
package franz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/dispatch"
	"github.com/Gunvolt24/dispatch_bench/internal/domain"
	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"
)

var (
	_ dispatch.RecordSource = (*Consumer)(nil)
	_ dispatch.Acknowledger = (*Consumer)(nil)
)

// client - используемая часть *kgo.Client.
type client interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
	Close()
}

// Consumer читает по одной записи и коммитит оффсеты синхронно.
type Consumer struct {
	client    client
	topic     string
	group     string
	log       ports.Logger
	closeOnce sync.Once
}

func NewConsumer(cfg Config, zl *zap.Logger, log ports.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("franz: brokers, topic and group id are required")
	}
	cl, err := kgo.NewClient(cfg.Opts(zl)...)
	if err != nil {
		return nil, fmt.Errorf("franz: new client: %w", err)
	}
	return &Consumer{client: cl, topic: cfg.Topic, group: cfg.GroupID, log: log}, nil
}

// Subscribe запрашивает метаданные топика: брокер доступен, топик существует.
func (c *Consumer) Subscribe(ctx context.Context) error {
	req := kmsg.NewPtrMetadataRequest()
	t := kmsg.NewMetadataRequestTopic()
	t.Topic = kmsg.StringPtr(c.topic)
	req.Topics = append(req.Topics, t)

	resp, err := req.RequestWith(ctx, c.client)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	for _, mt := range resp.Topics {
		if mt.Topic == nil || *mt.Topic != c.topic {
			continue
		}
		if err := kerr.ErrorForCode(mt.ErrorCode); err != nil {
			return fmt.Errorf("topic %s: %w", c.topic, err)
		}
		if len(mt.Partitions) == 0 {
			return fmt.Errorf("topic %s has no partitions", c.topic)
		}
		c.log.Infof(ctx, "franz consumer subscribed topic=%s group_id=%s partitions=%d",
			c.topic, c.group, len(mt.Partitions))
		return nil
	}
	return fmt.Errorf("topic %s not found in metadata", c.topic)
}

// Poll забирает не больше одной записи; остальное остаётся в буфере клиента.
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) (domain.Record, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	fetches := c.client.PollRecords(pollCtx, 1)
	cancel()

	if fetches.IsClientClosed() {
		return domain.Record{}, false, kgo.ErrClientClosed
	}
	if ctx.Err() != nil {
		return domain.Record{}, false, ctx.Err()
	}

	var fetchErr error
	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		fetchErr = errors.Join(fetchErr, fmt.Errorf("fetch %s/%d: %w", topic, partition, err))
	})

	recs := fetches.Records()
	if len(recs) == 0 {
		return domain.Record{}, false, fetchErr
	}
	if fetchErr != nil {
		c.log.Warnf(ctx, "partial fetch error: %v", fetchErr)
	}
	return toRecord(recs[0]), true, nil
}

// Acknowledge коммитит Offset+1 для партиции записи.
func (c *Consumer) Acknowledge(ctx context.Context, rec domain.Record) error {
	return c.client.CommitRecords(ctx, &kgo.Record{
		Topic:       rec.Topic,
		Partition:   int32(rec.Partition),
		Offset:      rec.Offset,
		LeaderEpoch: -1,
	})
}

// Close покидает группу и закрывает клиента.
func (c *Consumer) Close() error {
	c.closeOnce.Do(c.client.Close)
	return nil
}

func toRecord(r *kgo.Record) domain.Record {
	return domain.Record{
		Topic:     r.Topic,
		Partition: int(r.Partition),
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		ArrivedAt: time.Now(),
	}
}
