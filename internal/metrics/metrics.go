// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videocompress_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocompress_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Compression metrics
var (
	CompressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_compressions_total",
			Help: "Total number of compression requests by final status",
		},
		[]string{"status"},
	)

	EncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videocompress_encode_duration_seconds",
			Help:    "Time spent in the external encoder",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	EncodesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocompress_encodes_in_progress",
			Help: "Number of encodes currently running",
		},
	)

	InputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videocompress_input_bytes_total",
			Help: "Total bytes of staged uploads",
		},
	)

	OutputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videocompress_output_bytes_total",
			Help: "Total bytes of compressed output produced",
		},
	)

	ArchiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_archive_uploads_total",
			Help: "Total number of S3 archive uploads by result",
		},
		[]string{"result"},
	)
)
