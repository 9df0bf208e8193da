package handlers

import (
	"net/http"

	"video-converter/internal/startup"
)

// VersionResponse is the build information plus the conversion tool the
// server resolved.
type VersionResponse struct {
	startup.BuildInfo
	// FFmpeg is the resolved executable path, empty when it cannot be found.
	FFmpeg string `json:"ffmpeg"`
}

// GetVersion reports what is running and which ffmpeg it converts with.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	resp := VersionResponse{BuildInfo: startup.GetBuildInfo()}
	if path, err := h.tool.Available(); err == nil {
		resp.FFmpeg = path
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}
