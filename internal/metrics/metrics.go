package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchproxy_requests_total",
		Help: "Streaming requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	AdmissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchproxy_admission_denied_total",
		Help: "Requests rejected by the daily usage gate.",
	}, []string{"mode"})

	FramesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchproxy_frames_written_total",
		Help: "Frames written to response streams by type.",
	}, []string{"type"})

	StreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchproxy_stream_duration_seconds",
		Help:    "Wall time from admission to stream close.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"mode"})

	MediaFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "searchproxy_media_fetch_duration_seconds",
		Help:    "Wall time of the media resolution fan-out.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

// ObserveStream records one finished stream.
func ObserveStream(mode string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(mode, outcome).Inc()
	StreamDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
