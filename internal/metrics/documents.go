// Package metrics exposes Prometheus instruments for document generation.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DocumentMetrics counts generated documents and their best-effort failures.
// A nil *DocumentMetrics records nothing.
type DocumentMetrics struct {
	generated       *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	assetFailures   *prometheus.CounterVec
	snapshotSkipped *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
}

// NewDocumentMetrics registers the instruments on registerer, falling back
// to the default registerer when nil.
func NewDocumentMetrics(registerer prometheus.Registerer) *DocumentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	generated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_generated_total",
			Help: "Documents generated, by kind and locale.",
		},
		[]string{"kind", "locale"}, // certificate | table | snapshot
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_generation_seconds",
			Help:    "Time spent building a document.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)
	assetFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_asset_failures_total",
			Help: "Images that failed to load and were left out of a certificate.",
		},
		[]string{"asset"}, // watermark | emblem | chairman_photo | verification_qr
	)
	snapshotSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_snapshots_skipped_total",
			Help: "Snapshot requests that produced no document.",
		},
		[]string{"reason"},
	)
	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_export_deliveries_total",
			Help: "Scheduled export deliveries, by channel and result.",
		},
		[]string{"channel", "result"}, // email | archive ; success | failed
	)

	registerer.MustRegister(generated, duration, assetFailures, snapshotSkipped, deliveries)

	return &DocumentMetrics{
		generated:       generated,
		duration:        duration,
		assetFailures:   assetFailures,
		snapshotSkipped: snapshotSkipped,
		deliveries:      deliveries,
	}
}

// ObserveGenerated records one generated document.
func (m *DocumentMetrics) ObserveGenerated(kind, locale string, took time.Duration) {
	if m == nil {
		return
	}
	m.generated.WithLabelValues(kind, locale).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

// AssetFailed implements the certificate builder's observer.
func (m *DocumentMetrics) AssetFailed(asset string) {
	if m == nil {
		return
	}
	m.assetFailures.WithLabelValues(asset).Inc()
}

// SnapshotSkipped implements the snapshot builder's observer.
func (m *DocumentMetrics) SnapshotSkipped(reason string) {
	if m == nil {
		return
	}
	m.snapshotSkipped.WithLabelValues(reason).Inc()
}

// ObserveDelivery records a scheduled export delivery attempt.
func (m *DocumentMetrics) ObserveDelivery(channel string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.deliveries.WithLabelValues(channel, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
