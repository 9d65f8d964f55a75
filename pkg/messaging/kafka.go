package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer reads a topic as part of a consumer group. Offsets are
// committed only after the handler succeeds.
type KafkaConsumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	breaker *Breaker
	retry   time.Duration
}

var (
	_ Consumer      = (*KafkaConsumer)(nil)
	_ HealthChecker = (*KafkaConsumer)(nil)
)

func NewKafkaConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		logger:  logger,
		breaker: NewBreaker(5, 30*time.Second),
		retry:   time.Second,
	}
}

// Run fetches and handles messages in order. A failing message is retried
// until it succeeds or ctx is done, so a partition never skips an event.
func (c *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.WarnContext(ctx, "error while reading message from kafka", "error", err)
			if !sleep(ctx, c.retry) {
				return nil
			}
			continue
		}

		for {
			if !c.breaker.Allow() {
				if !sleep(ctx, c.breaker.Wait()) {
					return nil
				}
				continue
			}
			if err := handle(ctx, m.Value); err != nil {
				c.breaker.RecordFailure()
				c.logger.ErrorContext(ctx, "error handling message",
					"error", err, "partition", m.Partition, "offset", m.Offset)
				if !sleep(ctx, c.retry) {
					return nil
				}
				continue
			}
			c.breaker.RecordSuccess()
			break
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", m.Offset, err)
		}
	}
}

// IsHealthy reports false while the breaker holds consumption back.
func (c *KafkaConsumer) IsHealthy() bool {
	return c.breaker.State() != StateOpen
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaProducer publishes workflow events keyed by submission, which keeps
// one submission's events in order.
type KafkaProducer struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaProducer)(nil)

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
