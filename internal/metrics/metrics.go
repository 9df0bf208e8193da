package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPPanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_http_panics_recovered_total",
			Help: "Total number of handler panics recovered by middleware",
		},
	)
)

// Upload pipeline metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_uploads_total",
			Help: "Total number of uploads by outcome",
		},
		[]string{"outcome"}, // "success", "client_error", "tool_missing", "transcode_failed", "storage_error", "internal_error"
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_upload_bytes",
			Help:    "Size of staged uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KiB .. 16GiB
		},
	)

	UploadsByContainer = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_uploads_by_container_total",
			Help: "Total number of staged uploads by source file extension",
		},
		[]string{"extension"}, // a known media extension such as ".mov", or "other"
	)

	StagedUploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_staged_uploads_in_flight",
			Help: "Number of staged upload files currently on disk",
		},
	)

	StagedUploadCleanupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_staged_upload_cleanup_errors_total",
			Help: "Total number of staged upload files that could not be removed",
		},
	)
)

// Session metrics
var (
	SessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_sessions_created_total",
			Help: "Total number of session directories allocated",
		},
		[]string{"status"}, // "success", "error"
	)

	StorageSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_storage_sessions",
			Help: "Number of session directories under the storage root",
		},
	)

	StorageConvertedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_storage_converted_files",
			Help: "Number of sessions holding a converted output file",
		},
	)

	StorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_storage_bytes",
			Help: "Total size of files under the storage root in bytes",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_transcoder_jobs_total",
			Help: "Total number of transcoding jobs",
		},
		[]string{"status"}, // "success", "tool_missing", "failed"
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
