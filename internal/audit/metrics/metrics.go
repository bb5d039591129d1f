package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit subsystem.
type Metrics struct {
	RecordsAppended *prometheus.CounterVec
	AppendFailures  prometheus.Counter
	AppendLatency   prometheus.Histogram
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
}

// New creates a Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_audit_records_appended_total",
			Help: "Audit records appended by subject entity type and action",
		}, []string{"entity_type", "action"}),

		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_audit_append_failures_total",
			Help: "Audit appends that failed and aborted the enclosing operation",
		}),

		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_audit_append_duration_seconds",
			Help:    "Duration of synchronous audit appends",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_audit_relay_published_total",
			Help: "Outbox entries published to the audit topic",
		}),

		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_audit_relay_failures_total",
			Help: "Outbox publish attempts that exhausted their retries",
		}),
	}
}

// IncAppended records a successful append.
func (m *Metrics) IncAppended(entityType, action string) {
	if m != nil {
		m.RecordsAppended.WithLabelValues(entityType, action).Inc()
	}
}

// IncAppendFailure records a failed append.
func (m *Metrics) IncAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

// ObserveAppendLatency records the duration of one append.
func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m != nil {
		m.AppendLatency.Observe(d.Seconds())
	}
}

// IncRelayPublished records one published outbox entry.
func (m *Metrics) IncRelayPublished() {
	if m != nil {
		m.RelayPublished.Inc()
	}
}

// IncRelayFailure records one exhausted publish attempt.
func (m *Metrics) IncRelayFailure() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}
