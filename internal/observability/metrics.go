// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "research_digest"

// Metrics holds the Prometheus collectors for fetching and filtering.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTPRequests counts outbound requests by host and status code
	// ("error" for transport failures).
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes outbound request latency by host.
	HTTPRequestDuration *prometheus.HistogramVec

	// SourceFetches counts adapter invocations by kind and outcome
	// (ok, error, skipped).
	SourceFetches *prometheus.CounterVec

	// SourceRecords counts records produced by kind.
	SourceRecords *prometheus.CounterVec

	// SourceFetchDuration observes adapter latency by kind.
	SourceFetchDuration *prometheus.HistogramVec

	// FilterRecords counts records entering and leaving each stage kind.
	FilterRecords *prometheus.CounterVec

	// TaskRuns counts task executions.
	TaskRuns *prometheus.CounterVec

	// TaskRecordsKept reports how many records survived the last run.
	TaskRecordsKept *prometheus.GaugeVec
}

// NewMetrics registers all collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep registrations isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Outbound HTTP requests by host and status code.",
		}, []string{"host", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Outbound HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		SourceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Source fetches by adapter kind and outcome.",
		}, []string{"kind", "outcome"}),
		SourceRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "records_total",
			Help:      "Records produced by adapter kind.",
		}, []string{"kind"}),
		SourceFetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency by adapter kind.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		FilterRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "records_total",
			Help:      "Records entering (in) and leaving (out) each filter stage kind.",
		}, []string{"stage", "direction"}),
		TaskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "runs_total",
			Help:      "Task executions.",
		}, []string{"task"}),
		TaskRecordsKept: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "records_kept",
			Help:      "Records that survived filtering in the most recent run.",
		}, []string{"task"}),
	}
}

// ObserveRequest records one outbound HTTP request.
func (m *Metrics) ObserveRequest(host, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(host, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveFetch records one adapter invocation.
func (m *Metrics) ObserveFetch(kind, outcome string, records int, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceFetches.WithLabelValues(kind, outcome).Inc()
	m.SourceRecords.WithLabelValues(kind).Add(float64(records))
	m.SourceFetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveStage records the record counts around one filter stage.
func (m *Metrics) ObserveStage(stage string, in, out int) {
	if m == nil {
		return
	}
	m.FilterRecords.WithLabelValues(stage, "in").Add(float64(in))
	m.FilterRecords.WithLabelValues(stage, "out").Add(float64(out))
}

// ObserveRun records a completed task execution.
func (m *Metrics) ObserveRun(task string, kept int) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(task).Inc()
	m.TaskRecordsKept.WithLabelValues(task).Set(float64(kept))
}
