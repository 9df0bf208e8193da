// Package metrics provides Prometheus instrumentation for the video converter.
//
// All metrics are prefixed with "video_converter_" and registered on the
// default registry through promauto, so Handler exposes them.
//
// # Metric Categories
//
// HTTP: request counts, durations and in-flight requests from the metrics
// middleware, plus recovered handler panics.
//
// Uploads: outcome counter (success, client_error, tool_missing,
// transcode_failed, storage_error, internal_error), staged byte sizes,
// the number of staged files currently on disk, and uploads by container
// extension.
//
// Sessions and storage: session directories allocated, and gauges for
// sessions, converted files and bytes under the storage root, refreshed by
// Collector.
//
// Transcoder: jobs by status, job duration and jobs in progress.
//
// Filesystem: ESTALE retry counters, recorded through the
// filesystem.Observer returned by NewFilesystemObserver.
//
// Call InitializeMetrics once at startup so every label combination is
// present from the first scrape.
package metrics
