package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"inboxpilot/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes activity events to a RabbitMQ queue
type Publisher struct {
	conn      *Connection
	queueName string
}

// NewPublisher creates a publisher and declares its queue
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishEvent publishes one activity event as a persistent JSON message
func (p *Publisher) PublishEvent(ctx context.Context, event *models.ActivityEvent) error {
	body, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         event.Type,
			MessageId:    event.ID.String(),
			Timestamp:    event.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}

	return nil
}

// EncodeEvent serializes an activity event for the queue
func EncodeEvent(event *models.ActivityEvent) ([]byte, error) {
	if event == nil {
		return nil, errors.New("event cannot be nil")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity event: %w", err)
	}
	return body, nil
}

// DecodeEvent parses a queued activity event
func DecodeEvent(body []byte) (*models.ActivityEvent, error) {
	var event models.ActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity event: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("activity event has no type")
	}
	return &event, nil
}
