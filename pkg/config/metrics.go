package config

import (
	"github.com/marmos91/wopihost/pkg/gc"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/metrics"
	promMetrics "github.com/marmos91/wopihost/pkg/metrics/prometheus"
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/marmos91/wopihost/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
//
// The collectors are exposed by the WOPI adapter on its metrics_path, so
// there is no separate metrics server.
type MetricsResult struct {
	// WOPIMetrics is the request collector for the WOPI adapter (never nil, uses noop if disabled)
	WOPIMetrics metrics.WOPIMetrics

	// LockMetrics observes lock outcomes (nil if disabled)
	LockMetrics lock.Metrics

	// ProofMetrics observes proof validation results (nil if disabled)
	ProofMetrics proof.Metrics

	// S3Metrics observes S3 content store calls (nil if disabled)
	S3Metrics s3.S3Metrics

	// GCMetrics observes garbage collection runs (nil if disabled)
	GCMetrics gc.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns no-op WOPI metrics and nil component metrics (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		// Metrics disabled - return no-op implementations
		return &MetricsResult{
			WOPIMetrics: metrics.NewNoopWOPIMetrics(),
		}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	return &MetricsResult{
		WOPIMetrics:  promMetrics.NewWOPIMetrics(),
		LockMetrics:  metrics.NewLockMetrics(),
		ProofMetrics: metrics.NewProofMetrics(),
		S3Metrics:    metrics.NewS3Metrics(),
		GCMetrics:    metrics.NewGCMetrics(),
	}
}
