package metrics

import (
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// proofMetrics is the Prometheus implementation of proof.Metrics.
type proofMetrics struct {
	validationsTotal *prometheus.CounterVec
}

// NewProofMetrics creates a new Prometheus-backed proof.Metrics instance.
//
// Returns nil if metrics are not enabled.
func NewProofMetrics() proof.Metrics {
	if !IsEnabled() {
		return nil
	}

	return &proofMetrics{
		validationsTotal: promauto.With(GetRegistry()).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wopihost_proof_validations_total",
				Help: "Total number of proof validations by result",
			},
			[]string{"result"}, // valid, missing, expired, no_keys, rejected
		),
	}
}

func (m *proofMetrics) ObserveProof(result string) {
	m.validationsTotal.WithLabelValues(result).Inc()
}
