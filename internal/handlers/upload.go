package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
	"video-converter/internal/pipeline"
	"video-converter/internal/session"
)

const (
	// uploadField is the multipart form field carrying the video.
	uploadField = "video"
	// multipartOverhead allows for boundaries, part headers and small fields
	// on top of the file itself.
	multipartOverhead = 1 << 20
)

// ProcessResponse is the body of a successful upload.
type ProcessResponse struct {
	Status       string `json:"status"`
	ConvertedURL string `json:"converted_url"`
}

// ProcessVideo accepts a multipart upload, converts it and replies with the
// URL of the converted file. The request is streamed part by part so the
// file is never buffered in memory.
func (h *Handlers) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	limit := h.uploader.MaxUploadBytes() + multipartOverhead
	if r.ContentLength > limit {
		h.rejectTooLarge(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	upload := pipeline.Upload{Size: -1}

	mr, err := r.MultipartReader()
	if err != nil {
		logging.Debug("Upload rejected, not a multipart request: %v", err)
	} else {
		part, err := findFilePart(mr, uploadField)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.rejectTooLarge(w, r)
				return
			}
			logging.Debug("Upload rejected, malformed multipart body: %v", err)
		}
		if part != nil {
			defer part.Close()
			upload.File = part
			upload.Filename = part.FileName()
		}
	}

	result, err := h.uploader.HandleUpload(r.Context(), upload)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	w.Header().Set(session.Header, result.SessionID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, ProcessResponse{
		Status:       statusOK,
		ConvertedURL: pipeline.Locator(h.publicBase(r), result.SessionID, result.OutputName),
	})
}

// findFilePart advances to the named file part. A part of that name without
// a filename parameter is an ordinary form value, not a file, and is
// skipped. It returns nil without error when the form has no such part.
func findFilePart(mr *multipart.Reader, name string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == name && isFilePart(part) {
			return part, nil
		}
		part.Close()
	}
}

// isFilePart reports whether the part's Content-Disposition carries a
// filename parameter, even an empty one.
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

// rejectTooLarge answers an upload refused before it reached the pipeline.
func (h *Handlers) rejectTooLarge(w http.ResponseWriter, r *http.Request) {
	metrics.UploadsTotal.WithLabelValues(pipeline.KindClientInput.String()).Inc()
	h.writeUploadError(w, r, pipeline.TooLarge(h.uploader.MaxUploadBytes()))
}

// writeUploadError maps a pipeline failure onto a status code and JSON body.
func (h *Handlers) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		err = pipeline.TooLarge(h.uploader.MaxUploadBytes())
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		message = pe.PublicMessage()
		if pe.SessionID != "" {
			w.Header().Set(session.Header, pe.SessionID)
		}
		switch pe.Kind {
		case pipeline.KindClientInput:
			status = http.StatusBadRequest
			if errors.Is(err, pipeline.ErrTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
		case pipeline.KindToolMissing, pipeline.KindTranscodeFailed, pipeline.KindStorage:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		logging.Error("Upload failed (%s) from %s: %v", pipeline.KindOf(err), r.RemoteAddr, err)
	} else {
		logging.Debug("Upload rejected: %v", err)
	}

	writeJSONError(w, message, status)
}

// publicBase returns the configured public URL or one derived from the
// request's scheme and Host.
func (h *Handlers) publicBase(r *http.Request) string {
	if h.config.PublicBaseURL != "" {
		return h.config.PublicBaseURL
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
