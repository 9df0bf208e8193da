package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxDiagnosticBytes caps the tool output carried in an Error. The tail is
// kept because that is where ffmpeg reports the failure.
const MaxDiagnosticBytes = 8 * 1024

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindInternal is anything unexpected.
	KindInternal Kind = iota
	// KindClientInput covers a missing file part, an empty filename, an empty
	// file, an unreadable body and oversized uploads.
	KindClientInput
	// KindToolMissing means the transcoding executable is unavailable.
	KindToolMissing
	// KindTranscodeFailed means the tool ran and failed.
	KindTranscodeFailed
	// KindStorage means a staging or session file could not be created.
	KindStorage
)

// String returns the metric label for k.
func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_error"
	case KindToolMissing:
		return "tool_missing"
	case KindTranscodeFailed:
		return "transcode_failed"
	case KindStorage:
		return "storage_error"
	default:
		return "internal_error"
	}
}

// Client input sentinels, matched with errors.Is.
var (
	ErrNoFile        = errors.New("no video file uploaded")
	ErrEmptyFilename = errors.New("empty filename")
	ErrEmptyFile     = errors.New("uploaded file is empty")
	ErrTooLarge      = errors.New("upload exceeds maximum size")
	ErrUnreadable    = errors.New("upload could not be read")
)

// Error is returned by HandleUpload for every failure.
type Error struct {
	Kind Kind
	// Message is safe to show to the client.
	Message string
	// Diagnostic is the (possibly truncated) tool stderr for transcode failures.
	Diagnostic string
	// SessionID names the session directory kept after a failed transcode.
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// PublicMessage is the text reported to the client: the message plus the
// diagnostic, if any.
func (e *Error) PublicMessage() string {
	if e.Diagnostic == "" {
		return e.Message
	}
	return e.Message + ": " + e.Diagnostic
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func clientError(message string, err error) *Error {
	return &Error{Kind: KindClientInput, Message: message, Err: err}
}

// truncateDiagnostic keeps the last MaxDiagnosticBytes of s, cut on a rune
// boundary and marked with a leading "...".
func truncateDiagnostic(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= MaxDiagnosticBytes {
		return s
	}

	start := len(s) - MaxDiagnosticBytes
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
