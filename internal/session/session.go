package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"

	"github.com/google/uuid"
)

// ErrStorage is wrapped by every error caused by the storage root, such as a
// full filesystem or missing permissions.
var ErrStorage = errors.New("storage error")

// DefaultOutputName is the file each session's converted output is written to.
const DefaultOutputName = "converted.mp4"

// Header is the response header carrying the session an upload created,
// including sessions kept after a failed transcode.
const Header = "X-Session-Id"

// Session is one isolated unit of work backed by its own directory.
type Session struct {
	ID  string
	Dir string
}

// Store allocates sessions under a storage root.
type Store struct {
	root       string
	outputName string
}

// NewStore creates a Store rooted at root. The root is created lazily by
// NewSession.
func NewStore(root string) *Store {
	return &Store{root: root, outputName: DefaultOutputName}
}

// Dir returns the directory for a session id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// NewSession generates a random id and creates its directory (and any
// missing parents). A directory that already exists for a fresh id is
// reported rather than reused.
func (s *Store) NewSession() (Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("%w: generate session id: %w", ErrStorage, err)
	}

	sess := Session{ID: id.String(), Dir: s.Dir(id.String())}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("%w: create storage root %s: %w", ErrStorage, s.root, err)
	}

	if err := os.Mkdir(sess.Dir, 0o755); err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("error").Inc()
		if errors.Is(err, fs.ErrExist) {
			return Session{}, fmt.Errorf("%w: session directory %s already exists", ErrStorage, sess.Dir)
		}
		return Session{}, fmt.Errorf("%w: create session directory: %w", ErrStorage, err)
	}

	metrics.SessionsCreatedTotal.WithLabelValues("success").Inc()
	logging.Debug("Created session %s at %s", sess.ID, sess.Dir)

	return sess, nil
}

// ValidID reports whether id is a canonical UUID string as produced by
// NewSession.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Stats walks the top level of the storage root and reports usage. It
// implements metrics.StatsProvider.
func (s *Store) Stats() (metrics.StorageStats, error) {
	var stats metrics.StorageStats

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("read storage root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}
		stats.Sessions++

		dir := filepath.Join(s.root, entry.Name())
		if info, err := os.Stat(filepath.Join(dir, s.outputName)); err == nil && info.Size() > 0 {
			stats.ConvertedFiles++
		}

		size, err := dirSize(dir)
		if err != nil {
			logging.Debug("Failed to size session %s: %v", entry.Name(), err)
			continue
		}
		stats.TotalBytes += size
	}

	return stats, nil
}

// CheckWritable verifies the storage root can be created and written to.
func (s *Store) CheckWritable() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	testFile := filepath.Join(s.root, fmt.Sprintf(".write-test-%d", time.Now().UnixNano()))
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
