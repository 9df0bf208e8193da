// Package fileserver serves converted files from the storage root.
//
// Requested paths are untrusted. Resolve decodes them repeatedly, rejects any
// form that climbs out of the root (dot-dot segments, absolute or volume paths,
// NUL bytes) and verifies that the symlink-resolved target still lies under
// the root before anything is opened.
//
// Files are opened through the filesystem package so a storage root on NFS
// survives stale handles, and bytes are streamed with http.ServeContent, which
// provides Range and conditional request support.
package fileserver
