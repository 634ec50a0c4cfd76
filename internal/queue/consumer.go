package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads from one durable queue with manual acknowledgements.
//
// Delivery is at-least-once: a message stays unacked until the handler
// calls Ack, and a nack (or a consumer crash before ack) puts it back for
// redelivery. Prefetch is pinned to 1 so a worker holds at most one
// in-flight message, which is all the backpressure this design has.
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewConsumer(url, queueName string) (*Consumer, error) {
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

	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
	}, nil
}

// Deliveries opens the consume stream. The channel closes when the
// connection drops or Close is called.
func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %q: %w", c.queueName, err)
	}
	return msgs, nil
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
