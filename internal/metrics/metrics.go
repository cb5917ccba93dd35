// Package metrics exposes Prometheus counters and gauges for clipbatch.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds Prometheus collectors for the editor and its HTTP surface.
// It satisfies editor.Observer.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	uploadsTotal   *prometheus.CounterVec
	probesTotal    *prometheus.CounterVec
	exportsTotal   *prometheus.CounterVec
	exportSeconds  prometheus.Histogram
	publishedTotal *prometheus.CounterVec
	batchClips     prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipbatch_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipbatch_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbatch_uploads_total",
			Help: "Uploads by outcome (accepted or rejected)",
		}, []string{"result"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbatch_probes_total",
			Help: "Source duration probes by outcome",
		}, []string{"result"}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbatch_exports_total",
			Help: "Range exports by outcome",
		}, []string{"result"}),
		exportSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipbatch_export_duration_seconds",
			Help:    "Wall time spent trimming a range",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbatch_published_clips_total",
			Help: "Clips delivered to the publish target by outcome",
		}, []string{"result"}),
		batchClips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipbatch_batch_clips",
			Help: "Number of clips in the batch",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.uploadsTotal,
		m.probesTotal,
		m.exportsTotal,
		m.exportSeconds,
		m.publishedTotal,
		m.batchClips,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// UploadAccepted counts an upload that passed the allow-list.
func (m *Metrics) UploadAccepted() {
	m.uploadsTotal.WithLabelValues("accepted").Inc()
}

// UploadRejected counts an upload refused by the allow-list.
func (m *Metrics) UploadRejected() {
	m.uploadsTotal.WithLabelValues("rejected").Inc()
}

// ClipPublished counts one publish attempt.
func (m *Metrics) ClipPublished(err error) {
	m.publishedTotal.WithLabelValues(result(err)).Inc()
}

// SourceProbed counts a finished duration probe.
func (m *Metrics) SourceProbed(err error) {
	m.probesTotal.WithLabelValues(result(err)).Inc()
}

// ClipExported counts a finished export and records its duration.
func (m *Metrics) ClipExported(elapsed time.Duration, err error) {
	m.exportsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.exportSeconds.Observe(elapsed.Seconds())
	}
}

// BatchResized sets the batch size gauge.
func (m *Metrics) BatchResized(n int) {
	m.batchClips.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
