// Package metrics defines the coordinator's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	tasksCreated      *prometheus.CounterVec
	taskTransitions   *prometheus.CounterVec
	dispatches        *prometheus.CounterVec
	heartbeats        prometheus.Counter
	registrations     prometheus.Counter
	unregistrations   prometheus.Counter
	tasksCancelled    prometheus.Counter
	admissionDenials  *prometheus.CounterVec
	eventPublishFails prometheus.Counter

	// Histograms
	dispatchDuration *prometheus.HistogramVec
}

// New creates the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_tasks_created_total",
				Help: "Total number of tasks created",
			},
			[]string{"task_type"},
		),
		taskTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_task_status_updates_total",
				Help: "Total number of task status writes by target status",
			},
			[]string{"status"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_dispatches_total",
				Help: "Total number of dispatch attempts by outcome",
			},
			[]string{"outcome"},
		),
		heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_agent_heartbeats_total",
				Help: "Total number of heartbeats received",
			},
		),
		registrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_agent_registrations_total",
				Help: "Total number of agent registrations",
			},
		),
		unregistrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_agent_unregistrations_total",
				Help: "Total number of agent unregistrations",
			},
		),
		tasksCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_tasks_cancelled_total",
				Help: "Total number of pending tasks cancelled by agent unregistration",
			},
		),
		admissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_admission_denials_total",
				Help: "Total number of task creations rejected by the admission policy",
			},
			[]string{"task_type"},
		),
		eventPublishFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_task_event_failures_total",
				Help: "Total number of task events that could not be recorded",
			},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_dispatch_duration_seconds",
				Help:    "Time spent handing a task to its agent",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tasksCreated,
		m.taskTransitions,
		m.dispatches,
		m.heartbeats,
		m.registrations,
		m.unregistrations,
		m.tasksCancelled,
		m.admissionDenials,
		m.eventPublishFails,
		m.dispatchDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TaskCreated(taskType string) {
	if m == nil {
		return
	}
	m.tasksCreated.WithLabelValues(taskType).Inc()
}

func (m *Metrics) TaskStatusUpdated(status string) {
	if m == nil {
		return
	}
	m.taskTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Dispatched(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
	m.dispatchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) Heartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *Metrics) AgentRegistered() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) AgentUnregistered(cancelledTasks int) {
	if m == nil {
		return
	}
	m.unregistrations.Inc()
	m.tasksCancelled.Add(float64(cancelledTasks))
}

func (m *Metrics) AdmissionDenied(taskType string) {
	if m == nil {
		return
	}
	m.admissionDenials.WithLabelValues(taskType).Inc()
}

func (m *Metrics) EventFailed() {
	if m == nil {
		return
	}
	m.eventPublishFails.Inc()
}
