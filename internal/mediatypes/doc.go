// Package mediatypes holds extension tables shared by the upload pipeline and
// the file server. It has no dependencies outside the standard library so any
// package can import it.
//
// GetFileType classifies an uploaded file name, which the pipeline only uses
// for logging: ffmpeg probes the content itself, so unknown extensions are
// still accepted.
//
// GetMimeType and ContentTypeForPath choose the Content-Type for served files:
//
//	w.Header().Set("Content-Type", mediatypes.ContentTypeForPath(path)) // "video/mp4"
package mediatypes
