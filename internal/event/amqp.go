package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// AMQPForwarder republishes bus events onto a durable RabbitMQ queue.
type AMQPForwarder struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewAMQPForwarder(url string, queueName string) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}

	return &AMQPForwarder{conn: conn, channel: ch, queue: q}, nil
}

func (f *AMQPForwarder) Forward(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.publish(ctx, e); err != nil {
		slog.Error("forward account event", "event_id", e.ID, "type", e.Type, "error", err)
	}
}

func (f *AMQPForwarder) publish(ctx context.Context, e Event) error {
	body, err := marshalEvent(e)
	if err != nil {
		return err
	}

	return f.channel.PublishWithContext(ctx, "", f.queue.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    e.ID,
		Type:         string(e.Type),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

func (f *AMQPForwarder) Close() {
	_ = f.channel.Close()
	_ = f.conn.Close()
}

func marshalEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return body, nil
}
