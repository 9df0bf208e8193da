// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] layers configuration from lowest to highest precedence:
//
//  1. Built-in defaults ([DefaultConfig])
//  2. A YAML file passed with --config (unknown keys are rejected)
//  3. Environment variables, optionally seeded from a .env file
//
// A .env file never overrides variables already present in the environment.
// The following environment variables are supported:
//
//   - STORAGE_ROOT: Directory holding one subdirectory per session (default: ./Uploads)
//   - BIND_ADDRESS: HTTP listen address (default: 0.0.0.0:5000)
//   - MAX_UPLOAD_BYTES: Largest accepted upload in bytes (default: 1073741824)
//   - PUBLIC_BASE_URL: Base of returned converted_url values (default: derived from the request)
//   - STAGING_DIR: Directory for staged uploads (default: system temp directory)
//   - FFMPEG_PATH: Converter executable name or path (default: ffmpeg)
//   - TRANSCODE_TIMEOUT: Upper bound for a single conversion as Go duration (default: none)
//   - CORS_ALLOWED_ORIGINS: Comma separated origins, or * (default: *)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - DEBUG: Shortcut for LOG_LEVEL=debug
//   - LOG_DOWNLOADS: Log converted file downloads (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// Both the storage root and the staging directory are created when missing
// and must be writable. The converter executable is probed separately by
// [LogTranscoderInit]; its absence is reported but does not stop startup.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogTranscoderInit]: FFmpeg availability and version
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]: Graceful shutdown
package startup
