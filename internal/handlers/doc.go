// Package handlers provides the HTTP request handlers for the video converter.
//
// It includes handlers for:
//   - Uploading a video for conversion (POST /process-video)
//   - Downloading converted files by session (GET /{sessionId}/{filename})
//   - Health, liveness and readiness probes
//   - Version information
//
// Requests are validated here and turned into typed values before they reach
// the pipeline. Every error response has the shape {"status":"error","msg":...}.
package handlers
