package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Producer publishes job descriptors to a single durable queue. Each
// pipeline stage owns its own producer and connection.
type Producer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewProducer(url, queueName string) (*Producer, error) {
	conn, err := connectWithRetry(url, 10, 5*time.Second)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(channel, queueName); err != nil {
		conn.Close()
		return nil, err
	}

	return &Producer{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
	}, nil
}

// Publish sends the descriptor as a persistent message so the broker keeps
// it across restarts.
func (p *Producer) Publish(ctx context.Context, job JobDescriptor) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.SourceBlobID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %q: %w", p.queueName, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
