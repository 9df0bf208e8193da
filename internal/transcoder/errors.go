package transcoder

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrToolMissing     = errors.New("transcoding tool missing")
	ErrTranscodeFailed = errors.New("transcode failed")
)

// ToolMissingError reports that the executable could not be located or launched.
type ToolMissingError struct {
	Err error
}

func (e *ToolMissingError) Error() string {
	if e.Err == nil {
		return "ffmpeg is not installed or not on PATH; install it and add it to PATH"
	}
	return fmt.Sprintf("ffmpeg is not installed or not on PATH; install it and add it to PATH: %v", e.Err)
}

func (e *ToolMissingError) Unwrap() error { return e.Err }

func (e *ToolMissingError) Is(target error) bool { return target == ErrToolMissing }

// TranscodeFailedError reports that the tool ran and failed.
type TranscodeFailedError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TranscodeFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcode failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("transcode failed (exit code %d)", e.ExitCode)
}

func (e *TranscodeFailedError) Unwrap() error { return e.Err }

func (e *TranscodeFailedError) Is(target error) bool { return target == ErrTranscodeFailed }
