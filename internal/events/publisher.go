// Package events announces completed predictions on a RabbitMQ exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/example/polybot/internal/prediction"
)

// Publisher announces a completed prediction.
type Publisher interface {
	PublishPrediction(ctx context.Context, summary *prediction.Summary) error
	Close() error
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a direct exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange.
func NewAMQPPublisher(amqpURL, exchange, routingKey string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

// PublishPrediction sends summary as JSON with the configured routing key.
func (p *AMQPPublisher) PublishPrediction(ctx context.Context, summary *prediction.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	publishing, err := newPublishing(summary)
	if err != nil {
		return err
	}
	if err := p.channel.Publish(p.exchange, p.routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish prediction %s: %w", summary.PredictionID, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func newPublishing(summary *prediction.Summary) (amqp.Publishing, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal prediction to JSON: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    summary.PredictionID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}, nil
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishPrediction(ctx context.Context, summary *prediction.Summary) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
