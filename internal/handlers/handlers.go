package handlers

import (
	"context"
	"net/http"
	"time"

	"video-converter/internal/pipeline"
)

// Uploader runs an upload through staging, conversion and cleanup.
type Uploader interface {
	HandleUpload(ctx context.Context, upload pipeline.Upload) (*pipeline.Result, error)
	MaxUploadBytes() int64
}

// FileServer writes stored files. It returns fileserver.ErrForbidden or
// fileserver.ErrNotFound without writing anything.
type FileServer interface {
	Serve(w http.ResponseWriter, r *http.Request, requested string) error
}

// ToolProber reports on the conversion tool.
type ToolProber interface {
	Available() (string, error)
	ActiveJobs() int
}

// StorageChecker verifies the storage root accepts writes.
type StorageChecker interface {
	CheckWritable() error
}

// Config holds handler settings taken from the application configuration.
type Config struct {
	// PublicBaseURL prefixes converted_url. Empty derives it from the request.
	PublicBaseURL string
}

type Handlers struct {
	uploader  Uploader
	files     FileServer
	tool      ToolProber
	storage   StorageChecker
	config    Config
	startTime time.Time
}

func New(uploader Uploader, files FileServer, tool ToolProber, storage StorageChecker, config Config) *Handlers {
	return &Handlers{
		uploader:  uploader,
		files:     files,
		tool:      tool,
		storage:   storage,
		config:    config,
		startTime: time.Now(),
	}
}

// NotFound answers requests that match no route.
func (h *Handlers) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, "Not found", http.StatusNotFound)
}

// MethodNotAllowed answers requests whose path matched with the wrong method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
}
