// Package metrics exposes Prometheus instruments for the synchronisation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for change submission and verification.
type Metrics struct {
	// Operation outcomes by operation and result code
	Operations *prometheus.CounterVec

	// End-to-end operation latency, including verification polling
	OperationLatency *prometheus.HistogramVec

	// Verification attempts used per operation
	VerificationAttempts *prometheus.HistogramVec

	// Journal entries settled by the re-verification worker
	Reverified *prometheus.CounterVec
}

// New registers all instruments with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sdmox_operations_total",
			Help: "Total unit operations by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome: "ok", "dry_run" or an error code

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sdmox_operation_duration_seconds",
			Help:    "Duration of unit operations including registry polling",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"operation"}),

		VerificationAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sdmox_verification_attempts",
			Help:    "Registry polls needed before verification finished",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}, []string{"operation"}),

		Reverified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sdmox_journal_reverified_total",
			Help: "Journal entries settled by the worker by resulting status",
		}, []string{"status"}),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// ObserveVerification records how many polls a verification used.
func (m *Metrics) ObserveVerification(operation string, attempts int) {
	if m != nil {
		m.VerificationAttempts.WithLabelValues(operation).Observe(float64(attempts))
	}
}

// IncrementReverified records a journal entry settled by the worker.
func (m *Metrics) IncrementReverified(status string) {
	if m != nil {
		m.Reverified.WithLabelValues(status).Inc()
	}
}
