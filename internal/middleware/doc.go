// Package middleware provides HTTP middleware for the video converter.
//
// It includes:
//   - An access log in W3C Extended Log Format recording upload size
//     (cs-bytes) and the session each request created or read (x-session)
//   - Prometheus request metrics with bounded path labels
//   - CORS headers and preflight handling for browser uploads
//   - Panic recovery that answers 500 JSON and keeps the server running
//
// Requests are grouped by route (upload, download, health, info, other);
// downloads and health checks can be left out of the access log.
package middleware
