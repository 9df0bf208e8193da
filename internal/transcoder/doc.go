// Package transcoder converts uploaded videos to H.264/AAC MP4 with FFmpeg.
//
// The tool is a black box with a narrow contract. Transcode runs it as a
// synchronous subprocess, captures stdout and stderr in full, and returns a
// Result tagged with one of three outcomes:
//
//   - OutcomeSuccess: exit status zero and a non-empty output file
//   - OutcomeToolMissing: the executable could not be found or launched
//   - OutcomeToolFailed: it ran but exited non-zero or wrote nothing
//
// Callers branch on Result.Outcome, or call Result.Err for a typed error
// (ToolMissingError, TranscodeFailedError) that matches ErrToolMissing or
// ErrTranscodeFailed with errors.Is.
//
// Running processes are tracked so Cleanup can kill them on shutdown.
package transcoder
