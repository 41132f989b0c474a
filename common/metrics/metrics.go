// Package metrics holds the Prometheus collectors for envelope traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

var (
	// Encoding metrics
	EnvelopesEncoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibridge_envelopes_encoded_total",
			Help: "Total number of envelopes encoded to wire form",
		},
		[]string{"kind"},
	)

	EnvelopeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ibridge_envelope_bytes",
			Help:    "Size of encoded envelopes in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	// Publishing metrics
	EnvelopesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibridge_envelopes_published_total",
			Help: "Total number of envelopes handed to the transport",
		},
		[]string{"kind", "status"},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ibridge_publish_duration_seconds",
			Help:    "Duration of transport publish calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordEncoded counts one encoded envelope of the given kind and size.
func RecordEncoded(kind string, size int) {
	EnvelopesEncoded.WithLabelValues(kind).Inc()
	EnvelopeBytes.Observe(float64(size))
}

// RecordPublished counts one publish attempt.
func RecordPublished(kind, status string) {
	EnvelopesPublished.WithLabelValues(kind, status).Inc()
}

// ObservePublishDuration records how long a transport publish call took.
// Only attempts that reached the transport are observed.
func ObservePublishDuration(seconds float64) {
	PublishDuration.Observe(seconds)
}
