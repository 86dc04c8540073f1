// Package metrics provides Prometheus metrics for the event log.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds all Prometheus metrics for the process.
type Metrics struct {
	EventsAppended   *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	SubscriberErrors *prometheus.CounterVec
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EventsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectlog_events_appended_total",
				Help: "Total number of events durably appended by type.",
			},
			[]string{"type"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectlog_events_published_total",
				Help: "Total number of events delivered to all subscribers by type.",
			},
			[]string{"type"},
		),
		SubscriberErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectlog_subscriber_errors_total",
				Help: "Total subscriber failures during publish by type.",
			},
			[]string{"type"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectlog_commands_total",
				Help: "Total number of commands handled by command and status.",
			},
			[]string{"command", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectlog_command_duration_seconds",
				Help:    "Command handling duration by command.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		registry: reg,
	}

	reg.MustRegister(m.EventsAppended)
	reg.MustRegister(m.EventsPublished)
	reg.MustRegister(m.SubscriberErrors)
	reg.MustRegister(m.CommandsTotal)
	reg.MustRegister(m.CommandDuration)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family in the text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// RecordAppended increments the appended-events counter.
func (m *Metrics) RecordAppended(eventType string) {
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

// RecordPublished increments the published-events counter.
func (m *Metrics) RecordPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordSubscriberError increments the subscriber error counter.
func (m *Metrics) RecordSubscriberError(eventType string) {
	m.SubscriberErrors.WithLabelValues(eventType).Inc()
}

// RecordCommand increments the command counter and observes its duration.
func (m *Metrics) RecordCommand(command, status string, seconds float64) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(seconds)
}
