package mediatypes

import (
	"mime"
	"path/filepath"
	"strings"
)

// FileType represents the broad category of a stored file.
type FileType string

const (
	// FileTypeVideo represents a video container.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio-only container.
	FileTypeAudio FileType = "audio"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// DefaultMimeType is served when nothing better is known.
const DefaultMimeType = "application/octet-stream"

// VideoExtensions maps file extensions to whether they are recognised video containers.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".ogv":  true,
}

// AudioExtensions maps file extensions to whether they are recognised audio containers.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// MimeTypes maps file extensions to their MIME types. It is consulted before
// the system mime table because mime.TypeByExtension has no built-in entry
// for most video containers.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",

	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",

	".log": "text/plain; charset=utf-8",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
func GetFileType(ext string) FileType {
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if AudioExtensions[ext] {
		return FileTypeAudio
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension, falling back
// to the system mime table and then DefaultMimeType.
func GetMimeType(ext string) string {
	ext = strings.ToLower(ext)
	if m, ok := MimeTypes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return m
	}
	return DefaultMimeType
}

// ContentTypeForPath is GetMimeType applied to the extension of path.
func ContentTypeForPath(path string) string {
	return GetMimeType(filepath.Ext(path))
}

// IsMediaFile returns true if the extension represents a recognised media container.
func IsMediaFile(ext string) bool {
	return GetFileType(strings.ToLower(ext)) != FileTypeOther
}
