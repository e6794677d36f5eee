// Package metrics declares the Prometheus collectors used across LabelDrop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts upload submissions by outcome
	// (ok, validation, transfer, persistence).
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeldrop_uploads_total",
		Help: "Upload submissions by outcome.",
	}, []string{"outcome"})

	// UploadedBytes sums the bytes written to the blob store.
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labeldrop_uploaded_bytes_total",
		Help: "Bytes written to the blob store.",
	})

	// TransitionsTotal counts status changes by target and outcome.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeldrop_status_transitions_total",
		Help: "Status transitions by target status and outcome.",
	}, []string{"target", "outcome"})

	// LiveWatchers is the number of connected live view clients.
	LiveWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labeldrop_live_watchers",
		Help: "Connected live view clients.",
	})

	// SnapshotsTotal counts snapshots delivered by live subscriptions.
	SnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labeldrop_snapshots_total",
		Help: "Snapshots delivered by live subscriptions.",
	})

	// InspectionsTotal counts worker inspections by outcome.
	InspectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeldrop_inspections_total",
		Help: "Label inspections by outcome.",
	}, []string{"outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeldrop_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labeldrop_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveHTTP records one finished request. route must be a pattern, never a
// raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Outcome turns a nil/non-nil error into a label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
