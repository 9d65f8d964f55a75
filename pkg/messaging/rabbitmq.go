package messaging

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitConfig holds configuration for the RabbitMQ consumer.
type RabbitConfig struct {
	URL       string
	Queue     string
	TLSConfig *tls.Config

	Prefetch          int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HeartbeatTimeout  time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// DefaultRabbitConfig returns a default configuration.
func DefaultRabbitConfig(url, queue string) RabbitConfig {
	return RabbitConfig{
		URL:               url,
		Queue:             queue,
		Prefetch:          10,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 60 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
	}
}

// RabbitConsumer consumes a durable queue with a dead-letter sibling. A
// delivery that fails twice is dead-lettered to "<queue>.dlq".
type RabbitConsumer struct {
	config  RabbitConfig
	logger  *slog.Logger
	breaker *Breaker

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

var (
	_ Consumer      = (*RabbitConsumer)(nil)
	_ HealthChecker = (*RabbitConsumer)(nil)
)

func NewRabbitConsumer(config RabbitConfig, logger *slog.Logger) *RabbitConsumer {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay == 0 {
		config.MaxReconnectDelay = 60 * time.Second
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitConsumer{
		config:  config,
		logger:  logger,
		breaker: NewBreaker(config.BreakerThreshold, config.BreakerTimeout),
	}
}

func (r *RabbitConsumer) connect() (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("consumer closed")
	}

	r.logger.Info("connecting to rabbitmq", "url", maskURL(r.config.URL), "queue", r.config.Queue)
	var (
		conn *amqp.Connection
		err  error
	)
	if r.config.TLSConfig != nil {
		conn, err = amqp.DialTLS(r.config.URL, r.config.TLSConfig)
	} else {
		conn, err = amqp.DialConfig(r.config.URL, amqp.Config{Heartbeat: r.config.HeartbeatTimeout})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareWithDLQ(ch, r.config.Queue); err != nil {
		conn.Close()
		return nil, err
	}
	if r.config.Prefetch > 0 {
		if err := ch.Qos(r.config.Prefetch, 0, false); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	msgs, err := ch.Consume(r.config.Queue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}
	r.conn, r.ch = conn, ch
	return msgs, nil
}

func declareWithDLQ(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Run consumes until ctx is done, reconnecting with exponential backoff.
func (r *RabbitConsumer) Run(ctx context.Context, handle Handler) error {
	backoff := r.config.ReconnectDelay
	for {
		msgs, err := r.connect()
		if err != nil {
			r.logger.WarnContext(ctx, "rabbitmq unavailable", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, r.config.MaxReconnectDelay)
			continue
		}
		backoff = r.config.ReconnectDelay
		r.logger.InfoContext(ctx, "consuming workflow events", "queue", r.config.Queue)

		if done := r.drain(ctx, msgs, handle); done {
			r.Close()
			return nil
		}
		r.logger.WarnContext(ctx, "rabbitmq channel closed, reconnecting", "queue", r.config.Queue)
		r.closeConn()
	}
}

// drain handles deliveries until the channel closes or ctx is done, which
// it reports.
func (r *RabbitConsumer) drain(ctx context.Context, msgs <-chan amqp.Delivery, handle Handler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-msgs:
			if !ok {
				return false
			}
			if !r.breaker.Allow() {
				d.Nack(false, true)
				sleep(ctx, r.breaker.Wait())
				continue
			}
			if err := handle(ctx, d.Body); err != nil {
				r.breaker.RecordFailure()
				r.logger.ErrorContext(ctx, "error handling message",
					"error", err, "redelivered", d.Redelivered, "breaker", r.breaker.State().String())
				d.Nack(false, !d.Redelivered)
				continue
			}
			r.breaker.RecordSuccess()
			d.Ack(false)
		}
	}
}

func (r *RabbitConsumer) closeConn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		r.ch.Close()
		r.ch = nil
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *RabbitConsumer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.closeConn()
	return nil
}

// IsHealthy reports whether the consumer holds an open connection.
func (r *RabbitConsumer) IsHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil && !r.conn.IsClosed()
}

// RabbitPublisher publishes persistent messages to a queue declared with the
// same dead-letter sibling the consumer expects.
type RabbitPublisher struct {
	queue string
	conn  *amqp.Connection
	ch    *amqp.Channel
}

var _ Publisher = (*RabbitPublisher)(nil)

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq at %s: %w", maskURL(url), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareWithDLQ(ch, queue); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{queue: queue, conn: conn, ch: ch}, nil
}

// Publish routes by queue. The key travels as the correlation id.
func (p *RabbitPublisher) Publish(ctx context.Context, key string, body []byte) error {
	err := p.ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: key,
			Timestamp:     time.Now(),
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}

func maskURL(url string) string {
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			return url[:scheme+3] + "***:***@" + url[at+1:]
		}
	}
	return url
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
