// Package logging provides a simple leveled logging interface for the
// video converter service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (ffmpeg output, resolved paths)
//   - INFO: General operational messages
//   - WARN: Warning conditions, such as a staged upload that could not be removed
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true, and may be overridden at startup with SetLevel.
package logging
