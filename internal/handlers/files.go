package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"video-converter/internal/fileserver"
	"video-converter/internal/logging"
)

// ServeConverted serves /{sessionId}/{filename}, the path of every
// converted_url.
func (h *Handlers) ServeConverted(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.serveFile(w, r, vars["sessionId"]+"/"+vars["filename"])
}

// ServeUploads serves /Uploads/{path}, the storage root under its legacy
// prefix.
func (h *Handlers) ServeUploads(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, mux.Vars(r)["path"])
}

func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, requested string) {
	err := h.files.Serve(w, r, requested)
	switch {
	case err == nil:
	case errors.Is(err, fileserver.ErrForbidden):
		writeJSONError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, fileserver.ErrNotFound):
		writeJSONError(w, "File not found", http.StatusNotFound)
	default:
		logging.Error("Failed to serve %q: %v", requested, err)
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
	}
}
