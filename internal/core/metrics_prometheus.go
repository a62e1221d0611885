package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records command outcomes, tag imports and event fan-out.
type PrometheusMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	tagsImported    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them.
func NewPrometheusMetrics(registry prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growcore_commands_total",
				Help: "Total number of service operations by outcome",
			},
			[]string{"operation", "status"}, // status: success, error
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "growcore_command_duration_seconds",
				Help:    "Time taken by service operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"operation"},
		),
		tagsImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growcore_tags_imported_total",
				Help: "Total number of tag serials processed by bulk import",
			},
			[]string{"result"}, // result: created, rejected
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growcore_events_published_total",
				Help: "Total number of committed events handed to the publisher",
			},
			[]string{"status"},
		),
	}
	for _, c := range []prometheus.Collector{m.commandsTotal, m.commandDuration, m.tagsImported, m.eventsPublished} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.commandsTotal.WithLabelValues(operation, status).Inc()
	m.commandDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTagImport implements TagImportObserver.
func (m *PrometheusMetrics) ObserveTagImport(_ context.Context, created, failed int) {
	m.tagsImported.WithLabelValues("created").Add(float64(created))
	m.tagsImported.WithLabelValues("rejected").Add(float64(failed))
}

// ObservePublish implements PublishObserver.
func (m *PrometheusMetrics) ObservePublish(_ context.Context, events int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsPublished.WithLabelValues(status).Add(float64(events))
}
