// Package session allocates upload sessions.
//
// A session is a random UUID and a directory storageRoot/<id> that belongs to
// that session alone. Directories are never reused and never removed here;
// retention is left to whoever manages the storage root.
package session
