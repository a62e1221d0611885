package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"growcore/pkg/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishKeysByTrackable(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, "plants", nil)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []domain.PlantEvent{
		{Seq: 7, TrackableType: domain.EntityPlant, TrackableID: "p-1", EventType: domain.EventPlaced, Actor: "alice", CreatedAt: at},
		{Seq: 8, TrackableType: domain.EntityMetrcTag, TrackableID: "TAG-1", EventType: domain.EventTagged, Actor: "alice", CreatedAt: at},
	}
	require.NoError(t, p.Publish(context.Background(), events))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "p-1", string(w.msgs[0].Key))
	assert.Equal(t, "placed", header(w.msgs[0], "event_type"))
	assert.Equal(t, "plant", header(w.msgs[0], "trackable_type"))
	assert.Equal(t, "alice", header(w.msgs[1], "actor"))
	assert.Empty(t, header(w.msgs[0], "traceparent"))
	assert.True(t, w.msgs[1].Time.Equal(at))

	var decoded domain.PlantEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, uint64(8), decoded.Seq)
	assert.Equal(t, domain.EventTagged, decoded.EventType)
}

func TestPublishPropagatesTraceContext(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ctx, span := provider.Tracer("test").Start(context.Background(), "command")
	defer span.End()

	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, "plants", nil)
	require.NoError(t, p.Publish(ctx, []domain.PlantEvent{{TrackableType: domain.EntityPlant, TrackableID: "p-1", EventType: domain.EventNoted}}))
	require.Len(t, w.msgs, 1)
	assert.Contains(t, header(w.msgs[0], "traceparent"), span.SpanContext().TraceID().String())
}

func TestPublishErrorsAndEmptyBatches(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewPublisherWithWriter(w, "plants", nil)
	assert.NoError(t, p.Publish(context.Background(), nil))
	err := p.Publish(context.Background(), []domain.PlantEvent{{TrackableType: domain.EntityPlant, TrackableID: "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plants")
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisherConfig(t *testing.T) {
	_, err := NewPublisher(Config{}, nil)
	require.Error(t, err)

	p, err := NewPublisher(Config{Brokers: ParseBrokers("localhost:9092, ,broker2:9092")}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.topic)
	writer, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, writer.Topic)
	assert.Equal(t, []string{"localhost:9092", "broker2:9092"}, ParseBrokers("localhost:9092, ,broker2:9092"))
	require.NoError(t, p.Close())
}
