// Package kafka publishes committed plant events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"

	"growcore/pkg/domain"
)

// DefaultTopic receives events when Config.Topic is empty.
const DefaultTopic = "growcore.plant-events"

// Config describes the brokers and topic events are written to.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes each event as one JSON message keyed by trackable id, so
// every entity's history lands on a single partition in order.
type Publisher struct {
	writer     MessageWriter
	topic      string
	logger     *slog.Logger
	propagator propagation.TextMapPropagator
}

// NewPublisher dials nothing up front; kafka-go connects on first write.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(writer, cfg.Topic, logger), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer:     w,
		topic:      topic,
		logger:     logger,
		propagator: propagation.TraceContext{},
	}
}

// Publish writes the events of one commit in a single batch.
func (p *Publisher) Publish(ctx context.Context, events []domain.PlantEvent) error {
	if len(events) == 0 {
		return nil
	}
	carrier := propagation.MapCarrier{}
	p.propagator.Inject(ctx, carrier)

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", e.Seq, err)
		}
		headers := []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "trackable_type", Value: []byte(e.TrackableType)},
			{Key: "actor", Value: []byte(e.Actor)},
		}
		for _, k := range carrier.Keys() {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.TrackableID),
			Value:   value,
			Headers: headers,
			Time:    e.CreatedAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("kafka publish failed", "topic", p.topic, "events", len(events), "error", err)
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("events published", "topic", p.topic, "events", len(events))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
