// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/people-workflow/internal/application/port"
)

// Metrics holds the Prometheus metrics of the workflow service
type Metrics struct {
	registry *prometheus.Registry

	InstancesCreated   *prometheus.CounterVec
	InstancesCompleted *prometheus.CounterVec
	StepTransitions    *prometheus.CounterVec
	TriggerOutcomes    *prometheus.CounterVec
	InstantiateLatency prometheus.Histogram
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// New creates metrics on a private registry that also carries the Go and
// process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		InstancesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_instances_created_total",
				Help: "Workflow instances created",
			},
			[]string{"module"},
		),
		InstancesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_instances_completed_total",
				Help: "Workflow instances that finished all steps",
			},
			[]string{"module"},
		),
		StepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_step_transitions_total",
				Help: "Step status transitions",
			},
			[]string{"from_status", "to_status"},
		),
		TriggerOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_trigger_events_total",
				Help: "Inbound entity events by outcome",
			},
			[]string{"kind", "outcome"},
		),
		InstantiateLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workflow_instantiate_duration_seconds",
				Help:    "Time to create an instance with its steps",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) InstanceCreated(module string) {
	m.InstancesCreated.WithLabelValues(module).Inc()
}

func (m *Metrics) InstanceCompleted(module string) {
	m.InstancesCompleted.WithLabelValues(module).Inc()
}

func (m *Metrics) StepTransition(from, to string) {
	m.StepTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) TriggerOutcome(kind, outcome string) {
	m.TriggerOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveInstantiate(d time.Duration) {
	m.InstantiateLatency.Observe(d.Seconds())
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

var _ port.Metrics = (*Metrics)(nil)
