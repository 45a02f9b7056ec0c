package buildamqp

import (
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// Consumer receives build messages over one connection.
// It should be recreated after the connection is closed.
type Consumer struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

// Dial connects to the broker and declares the build topology.
func Dial(connectionString string) (*Consumer, error) {
	conn, err := amqp091.Dial(connectionString)
	if err != nil {
		return nil, fmt.Errorf("buildamqp.Dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("buildamqp.Dial: %w", err)
	}

	if err = declare(ch); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("buildamqp.Dial: %w", err)
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// Requested returns deliveries of requested builds.
// At most prefetch deliveries are unacknowledged at a time.
// Deliveries must be acknowledged or rejected.
func (c *Consumer) Requested(prefetch int) (<-chan amqp091.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("buildamqp.Consumer: %w", err)
	}

	deliveries, err := c.ch.Consume(
		RequestedQueue, // queue
		"",             // consumer
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return nil, fmt.Errorf("buildamqp.Consumer: %w", err)
	}
	return deliveries, nil
}

// Canceled returns deliveries of canceled builds.
// They are acknowledged automatically.
func (c *Consumer) Canceled() (<-chan amqp091.Delivery, error) {
	q, err := c.ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("buildamqp.Consumer: %w", err)
	}

	if err = c.ch.QueueBind(q.Name, "", CanceledExchange, false, nil); err != nil {
		return nil, fmt.Errorf("buildamqp.Consumer: %w", err)
	}

	deliveries, err := c.ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("buildamqp.Consumer: %w", err)
	}
	return deliveries, nil
}

// NotifyClose returns a channel that receives the error the connection was closed with.
func (c *Consumer) NotifyClose() <-chan *amqp091.Error {
	return c.conn.NotifyClose(make(chan *amqp091.Error, 1))
}

func (c *Consumer) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}
