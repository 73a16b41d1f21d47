package metrics

import (
	"github.com/marmos91/wopihost/pkg/gc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type gcMetrics struct {
	runsTotal     *prometheus.CounterVec
	orphansTotal  *prometheus.CounterVec
	lastRunOrphan prometheus.Gauge
	runDuration   prometheus.Histogram
}

// NewGCMetrics creates a Prometheus-backed gc.Metrics, or nil when metrics
// are disabled.
func NewGCMetrics() gc.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wopihost_gc_runs_total",
				Help: "Total number of garbage collection runs by status",
			},
			[]string{"status"}, // success, error
		),
		orphansTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wopihost_gc_orphans_total",
				Help: "Orphaned content items by outcome",
			},
			[]string{"outcome"}, // deleted, failed
		),
		lastRunOrphan: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "wopihost_gc_last_run_orphaned",
				Help: "Orphaned content items found by the most recent run",
			},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wopihost_gc_run_duration_seconds",
				Help:    "Duration of garbage collection runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
	}
}

func (m *gcMetrics) RecordRun(stats *gc.Stats, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.orphansTotal.WithLabelValues("deleted").Add(float64(stats.DeletedCount))
	m.orphansTotal.WithLabelValues("failed").Add(float64(stats.FailedCount))
	m.lastRunOrphan.Set(float64(stats.OrphanedCount))
	m.runDuration.Observe(stats.Duration().Seconds())
}
