package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the retention sweeper.
type Metrics struct {
	Reclaimed       *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	SweepFailures   prometheus.Counter
	LeaseContention prometheus.Counter
}

// New creates a Metrics instance with all sweeper metrics registered.
func New() *Metrics {
	return &Metrics{
		Reclaimed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_reclaimed_total",
			Help: "Records reclaimed or flagged by the sweeper, by collection and action",
		}, []string{"collection", "action"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_retention_sweep_duration_seconds",
			Help:    "Duration of full sweep passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),

		SweepFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_retention_sweep_failures_total",
			Help: "Sweep passes that failed and were deferred to the next tick",
		}),

		LeaseContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_retention_lease_contention_total",
			Help: "Sweep ticks skipped because another sweep held the lease",
		}),
	}
}

// AddReclaimed records reclaimed or flagged rows for one collection.
func (m *Metrics) AddReclaimed(collection, action string, n int) {
	if m != nil && n > 0 {
		m.Reclaimed.WithLabelValues(collection, action).Add(float64(n))
	}
}

// ObserveSweepDuration records the duration of one sweep pass.
func (m *Metrics) ObserveSweepDuration(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}

// IncSweepFailure records a failed sweep pass.
func (m *Metrics) IncSweepFailure() {
	if m != nil {
		m.SweepFailures.Inc()
	}
}

// IncLeaseContention records a skipped tick.
func (m *Metrics) IncLeaseContention() {
	if m != nil {
		m.LeaseContention.Inc()
	}
}
