// Package main provides the entry point for the video converter.
//
// The video converter is an HTTP service that accepts a video upload, converts
// it to H.264 video and AAC audio in an MP4 container with ffmpeg, and serves
// the result from a directory unique to that upload.
//
// # Commands
//
//	video-converter [serve] [--config file.yaml] [--env-file .env]
//	video-converter convert SRC DST [--ffmpeg path] [--timeout 10m]
//	video-converter version
//
// # Application Lifecycle
//
//  1. Configuration Loading: .env file, optional YAML file, environment
//  2. Directory Setup: storage root and staging directory created and write-tested
//  3. Transcoder Probe: ffmpeg resolved on PATH; a missing tool is logged, not fatal
//  4. HTTP Server Setup: routes, middleware chain, separate metrics listener
//  5. Graceful Shutdown: on SIGINT/SIGTERM the server drains, running
//     transcodes are killed and the metrics collector stops
//
// # Request Flow
//
// POST /process-video streams the "video" part into a staged temp file,
// allocates a session directory, runs ffmpeg synchronously and replies with
// {"status":"ok","converted_url":"<base>/<sessionId>/converted.mp4"}. The
// staged file is removed on every exit path. Session directories are never
// deleted by the service.
package main
