package queue

import (
	"context"
	"errors"
	"fmt"

	"inboxpilot/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// EventHandler processes one decoded activity event
type EventHandler func(ctx context.Context, event *models.ActivityEvent) error

// Consumer consumes activity events from a RabbitMQ queue
type Consumer struct {
	conn      *Connection
	queueName string
	handler   EventHandler
	log       logrus.FieldLogger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewConsumer creates a consumer and declares its queue
func NewConsumer(conn *Connection, queueName string, handler EventHandler, log logrus.FieldLogger) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		log:       log.WithField("queue", queueName),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start begins consuming in a background goroutine
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// One unacknowledged event at a time
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					c.log.Warn("delivery channel closed")
					return
				}
				c.settle(d, c.process(ctx, d.Body), d.Redelivered)
			}
		}
	}()

	c.log.Info("consumer started")
	return nil
}

// Stop stops consuming and waits for the in-flight event to settle
func (c *Consumer) Stop() error {
	close(c.stopChan)
	<-c.doneChan

	c.log.Info("consumer stopped")
	return nil
}

// errMalformed marks events that can never be processed
var errMalformed = errors.New("malformed activity event")

func (c *Consumer) process(ctx context.Context, body []byte) error {
	event, err := DecodeEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	if err := c.handler(ctx, event); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}

	return nil
}

// acknowledger is the subset of amqp.Delivery used to settle a message
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks processed events. Failed events are requeued once; malformed
// or twice-failed events are dropped.
func (c *Consumer) settle(d acknowledger, err error, redelivered bool) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.WithError(ackErr).Error("failed to ack activity event")
		}
		return
	}

	requeue := shouldRequeue(err, redelivered)
	c.log.WithError(err).WithField("requeue", requeue).Warn("activity event not processed")
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.log.WithError(nackErr).Error("failed to nack activity event")
	}
}

func shouldRequeue(err error, redelivered bool) bool {
	return !errors.Is(err, errMalformed) && !redelivered
}

var _ acknowledger = amqp.Delivery{}
