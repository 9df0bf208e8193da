// Package pipeline implements the upload-transcode step behind
// POST /process-video.
//
// HandleUpload validates the upload, streams it in full into a staged temp
// file, allocates a session directory, runs the transcoder into
// <session>/converted.mp4 and returns the session id. The staged file is
// removed on every exit path, panics included. Session directories are never
// rolled back.
//
// Failures are *Error values classified by Kind so the HTTP layer can map
// them to status codes without inspecting messages.
package pipeline
