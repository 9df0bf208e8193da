package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	FFmpegAvailable  bool   `json:"ffmpegAvailable"`
	FFmpegPath       string `json:"ffmpegPath,omitempty"`
	StorageWritable  bool   `json:"storageWritable"`
	ActiveTranscodes int    `json:"activeTranscodes"`
	Error            string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

type readiness struct {
	ffmpegPath string
	ffmpegErr  error
	storageErr error
}

func (r readiness) ready() bool {
	return r.ffmpegErr == nil && r.storageErr == nil
}

func (h *Handlers) checkReadiness() readiness {
	var rd readiness
	rd.ffmpegPath, rd.ffmpegErr = h.tool.Available()
	rd.storageErr = h.storage.CheckWritable()
	return rd
}

// HealthCheck returns the health status of the service. It always answers
// 200 while the process runs; a missing tool or unwritable storage shows as
// "degraded".
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	rd := h.checkReadiness()

	response := HealthResponse{
		Status:           statusHealthy,
		Ready:            rd.ready(),
		Version:          startup.Version,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		FFmpegAvailable:  rd.ffmpegErr == nil,
		FFmpegPath:       rd.ffmpegPath,
		StorageWritable:  rd.storageErr == nil,
		ActiveTranscodes: h.tool.ActiveJobs(),
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	switch {
	case rd.ffmpegErr != nil:
		response.Status = statusDegraded
		response.Error = rd.ffmpegErr.Error()
	case rd.storageErr != nil:
		response.Status = statusDegraded
		response.Error = rd.storageErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when uploads can succeed: the storage root
// is writable and the conversion tool resolves.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.checkReadiness().ready() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
