package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"

	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/prediction"
)

type stubChannel struct {
	exchange   string
	key        string
	publishing amqp.Publishing
	err        error
	closed     bool
}

func (s *stubChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	s.exchange = exchange
	s.key = key
	s.publishing = msg
	return s.err
}

func (s *stubChannel) Close() error {
	s.closed = true
	return nil
}

func TestPublishPrediction(t *testing.T) {
	ch := &stubChannel{}
	publisher := &AMQPPublisher{channel: ch, exchange: "predictions", routingKey: "prediction.completed"}
	summary := &prediction.Summary{
		PredictionID: "p-1",
		Labels:       []labels.Record{{Class: "cat"}},
		Time:         1700000000,
	}

	if err := publisher.PublishPrediction(context.Background(), summary); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if ch.exchange != "predictions" || ch.key != "prediction.completed" {
		t.Fatalf("unexpected destination: %s/%s", ch.exchange, ch.key)
	}
	if ch.publishing.DeliveryMode != amqp.Persistent || ch.publishing.MessageId != "p-1" {
		t.Fatalf("unexpected publishing: %+v", ch.publishing)
	}

	var decoded prediction.Summary
	if err := json.Unmarshal(ch.publishing.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.PredictionID != "p-1" || len(decoded.Labels) != 1 {
		t.Fatalf("unexpected body: %+v", decoded)
	}

	if err := publisher.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !ch.closed {
		t.Fatal("expected channel to be closed")
	}
}

func TestPublishPredictionWrapsChannelError(t *testing.T) {
	ch := &stubChannel{err: errors.New("channel closed")}
	publisher := &AMQPPublisher{channel: ch, exchange: "predictions", routingKey: "prediction.completed"}

	if err := publisher.PublishPrediction(context.Background(), &prediction.Summary{PredictionID: "p-1"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
