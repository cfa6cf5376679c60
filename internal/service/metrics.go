package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the interchange service.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationSeconds *prometheus.HistogramVec
	DocumentBytes    prometheus.Histogram
}

// NewMetrics creates and registers the service metrics on a dedicated
// registry so tests can run several services in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mismod_operations_total",
			Help: "Interchange operations by type and outcome status",
		}, []string{"operation", "status"}),
		OperationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mismod_operation_duration_seconds",
			Help:    "Operation latency by type",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		DocumentBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mismod_document_bytes",
			Help:    "Size of generated and received MISMO documents",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}
