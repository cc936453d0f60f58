package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/title-reviews/internal/queue"
)

// AMQPDispatcher publishes mail to a durable RabbitMQ queue.  A connection
// is opened per message; signups are rare enough that pooling is not
// worth the reconnect handling.
type AMQPDispatcher struct {
	url   string
	queue string
}

func NewAMQPDispatcher(url, queueName string) *AMQPDispatcher {
	if queueName == "" {
		queueName = queue.DefaultMailQueue
	}
	return &AMQPDispatcher{url: url, queue: queueName}
}

// Send returns an error unless the broker accepted the message.
func (d *AMQPDispatcher) Send(ctx context.Context, to, subject, body string) error {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(d.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	payload, err := encodeMail(to, subject, body, time.Now().UTC())
	if err != nil {
		return err
	}
	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",      // default exchange
		d.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("rabbitmq: message nacked by broker")
	}
	return nil
}

func encodeMail(to, subject, body string, at time.Time) ([]byte, error) {
	b, err := json.Marshal(queue.MailMessage{
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: at.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode mail: %w", err)
	}
	return b, nil
}
