package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sender performs the actual delivery of a mail message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Consumer drains the mail queue and hands each message to a Sender.
type Consumer struct {
	url    string
	queue  string
	sender Sender
	logger *slog.Logger
}

// NewConsumer builds a consumer.  An empty queue name selects
// DefaultMailQueue.
func NewConsumer(url, queue string, sender Sender, logger *slog.Logger) *Consumer {
	if queue == "" {
		queue = DefaultMailQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{url: url, queue: queue, sender: sender, logger: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures trigger a reconnect with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("mail consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("mail consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.logger.Warn("mail consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(ctx, d.Body); err != nil {
			c.logger.Error("mail consumer: delivery failed", "error", err)
			// Requeue transient send failures once; drop malformed payloads.
			_ = d.Nack(false, !d.Redelivered && !errors.Is(err, errMalformed))
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

var errMalformed = errors.New("malformed mail message")

// Handle decodes one message body and sends it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var m MailMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: empty recipient", errMalformed)
	}
	if err := c.sender.Send(ctx, m.To, m.Subject, m.Body); err != nil {
		return fmt.Errorf("send to %s: %w", m.To, err)
	}
	c.logger.Info("mail delivered", "to", m.To, "subject", m.Subject)
	return nil
}
