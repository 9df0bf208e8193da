package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, outcome := range []string{"success", "client_error", "tool_missing",
		"transcode_failed", "storage_error", "internal_error"} {
		UploadsTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "error"} {
		SessionsCreatedTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "tool_missing", "failed"} {
		TranscoderJobsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "open"} {
		for _, vol := range []string{"storage", "staging", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
