// Package observability provides Prometheus metrics and HTTP middleware
// for the image endpoint and the static build.
package observability

import "github.com/prometheus/client_golang/prometheus"

// TransformBuckets covers image transforms from a few milliseconds for small
// thumbnails up to several seconds for large AVIF encodes.
var TransformBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagekit_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagekit_request_duration_seconds",
			Help:    "Request duration",
			Buckets: TransformBuckets,
		},
		[]string{"method", "route"},
	)

	// TransformsTotal counts transforms by engine, output format and result.
	TransformsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagekit_transforms_total",
			Help: "Image transforms",
		},
		[]string{"engine", "format", "result"},
	)

	// TransformDuration records transform time in seconds.
	TransformDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagekit_transform_duration_seconds",
			Help:    "Transform duration",
			Buckets: TransformBuckets,
		},
		[]string{"engine", "format"},
	)

	// BytesOut counts encoded image bytes by output format.
	BytesOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagekit_transform_bytes_total",
			Help: "Encoded image bytes",
		},
		[]string{"format"},
	)

	// SourceFetchFailures counts source images that could not be loaded.
	SourceFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagekit_source_fetch_failures_total",
			Help: "Source load failures",
		},
		[]string{"origin"},
	)

	// BuildImagesTotal counts files written by static builds.
	BuildImagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imagekit_build_images_total",
			Help: "Images written by static builds",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TransformsTotal,
		TransformDuration,
		BytesOut,
		SourceFetchFailures,
		BuildImagesTotal,
	)
}
