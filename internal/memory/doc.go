// Package memory sizes the Go runtime's soft memory limit from the
// container limit so that the server's heap leaves room for the ffmpeg
// processes it spawns.
//
// Environment variables:
//   - GOMEMLIMIT: honored as-is when set
//   - MEMORY_LIMIT: container memory limit in bytes (e.g. from the Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, default 0.5
package memory
