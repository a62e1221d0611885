package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TagImportObserver is implemented by recorders that count per-serial import outcomes.
type TagImportObserver interface {
	ObserveTagImport(ctx context.Context, created, failed int)
}

// PublishObserver is implemented by recorders that count event fan-out attempts.
type PublishObserver interface {
	ObservePublish(ctx context.Context, events int, err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts a span around a service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// EventPublisher receives the events of every committed command. It runs
// after the commit and cannot undo it.
type EventPublisher interface {
	Publish(ctx context.Context, events []PlantEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, []PlantEvent) error { return nil }

// DefaultFloorViewTTL bounds how long a floor view stays cached for one store version.
const DefaultFloorViewTTL = 30 * time.Second

// ServiceOption configures optional collaborators.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger       Logger
	clock        Clock
	metrics      MetricsRecorder
	tracer       Tracer
	publisher    EventPublisher
	floorViewTTL time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:       noopLogger{},
		clock:        systemClock{},
		metrics:      noopMetrics{},
		tracer:       noopTracer{},
		publisher:    noopPublisher{},
		floorViewTTL: DefaultFloorViewTTL,
	}
}

func applyServiceOptions(opts []ServiceOption) serviceOptions {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source. NewInMemoryService also stamps records with it.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithEventPublisher sets the post-commit event publisher.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(o *serviceOptions) {
		if publisher != nil {
			o.publisher = publisher
		}
	}
}

// WithFloorViewTTL sets the floor view cache lifetime. Zero or negative disables caching.
func WithFloorViewTTL(ttl time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.floorViewTTL = ttl
	}
}
