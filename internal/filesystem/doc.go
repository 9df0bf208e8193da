/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

The storage root that holds converted sessions is frequently an NFS or SMB
mount shared with whatever serves or archives the output. ESTALE (errno 116)
shows up there when a file is replaced or a mount is refreshed under a reader,
and a single retry is almost always enough.

Only ESTALE triggers a retry. Every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms.

Retry metrics are reported through an Observer, installed at startup with
SetObserver, and labelled with the volume name from a VolumeResolver.
*/
package filesystem
