package metrics

import (
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// lockMetrics is the Prometheus implementation of lock.Metrics.
type lockMetrics struct {
	operationsTotal *prometheus.CounterVec
	expiredTotal    prometheus.Counter
}

// NewLockMetrics creates a new Prometheus-backed lock.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the lock manager to use its built-in no-op implementation.
func NewLockMetrics() lock.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &lockMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wopihost_lock_operations_total",
				Help: "Total number of lock operations by operation and outcome",
			},
			[]string{"operation", "status"}, // status: ok, conflict
		),
		expiredTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "wopihost_lock_swept_total",
				Help: "Total number of expired locks removed by the sweeper",
			},
		),
	}
}

func (m *lockMetrics) ObserveLockOperation(operation string, status lock.Status) {
	m.operationsTotal.WithLabelValues(operation, status.String()).Inc()
}

func (m *lockMetrics) RecordSweep(removed int) {
	m.expiredTotal.Add(float64(removed))
}
