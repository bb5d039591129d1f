package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the authorization path.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	AuthorizeLatency prometheus.Histogram
	ResolverFailures prometheus.Counter
}

// New creates a Metrics instance with all authorization metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_access_decisions_total",
			Help: "Authorization decisions by entity type, operation and effect",
		}, []string{"entity_type", "operation", "effect"}),

		AuthorizeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_access_authorize_duration_seconds",
			Help:    "Duration of full authorization including entity lookup and audit append",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ResolverFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_access_resolver_failures_total",
			Help: "Entity lookups that failed or timed out and were denied fail-closed",
		}),
	}
}

// IncDecision records one decision outcome.
func (m *Metrics) IncDecision(entityType, operation, effect string) {
	if m != nil {
		m.Decisions.WithLabelValues(entityType, operation, effect).Inc()
	}
}

// ObserveAuthorizeLatency records the duration of one Authorize call.
func (m *Metrics) ObserveAuthorizeLatency(d time.Duration) {
	if m != nil {
		m.AuthorizeLatency.Observe(d.Seconds())
	}
}

// IncResolverFailure records a failed or timed-out entity lookup.
func (m *Metrics) IncResolverFailure() {
	if m != nil {
		m.ResolverFailures.Inc()
	}
}
