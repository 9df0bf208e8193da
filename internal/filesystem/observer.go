package filesystem

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package so that filesystem does not import it.
type Observer interface {
	// retryOp is the retried operation ("stat", "open"); volume is the label
	// resolved by the VolumeResolver ("storage", "staging", "unknown").
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// noopObserver is used until SetObserver is called (and in tests).
type noopObserver struct{}

func (noopObserver) ObserveRetryAttempt(string, string)           {}
func (noopObserver) ObserveRetrySuccess(string, string)           {}
func (noopObserver) ObserveRetryFailure(string, string)           {}
func (noopObserver) ObserveRetryDuration(string, string, float64) {}
func (noopObserver) ObserveStaleError(string, string)             {}

var defaultObserver Observer = noopObserver{}

// SetObserver sets the package-level metrics observer.
// Call this once at startup. A nil observer disables recording.
func SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
