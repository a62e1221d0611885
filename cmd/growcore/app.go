package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"growcore/internal/config"
	"growcore/internal/core"
	"growcore/internal/infra/events/kafka"
)

// app holds the wired service and everything that must be closed with it.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	svc      *core.Service
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newApp(cfg config.Config, logw io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: newLogger(cfg, logw), registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := core.NewPrometheusMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	opts := []core.ServiceOption{
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(metrics),
		core.WithFloorViewTTL(cfg.Cache.FloorViewTTL),
	}

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		a.closers = append(a.closers, tp.Shutdown)
		opts = append(opts, core.WithTracer(core.NewOTelTracer(tp)))
	}

	if cfg.Events.Kafka.Enabled {
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(cfg.Events.Kafka.Brokers),
			Topic:   cfg.Events.Kafka.Topic,
		}, a.logger)
		if err != nil {
			a.close(context.Background())
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		opts = append(opts, core.WithEventPublisher(pub))
	}

	store, err := core.OpenPersistentStore(cfg.StorageConfig(a.logger), core.NewDefaultRulesEngine())
	if err != nil {
		a.close(context.Background())
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
	}
	a.svc = core.NewService(store, opts...)
	a.logger.Debug("service ready", "storage", cfg.Storage.Driver, "kafka", cfg.Events.Kafka.Enabled, "tracing", cfg.Tracing.Enabled)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
