package fileserver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"video-converter/internal/filesystem"
	"video-converter/internal/logging"
	"video-converter/internal/mediatypes"
)

// maxDecodeDepth bounds how many rounds of percent-decoding are inspected.
const maxDecodeDepth = 4

var (
	// ErrForbidden is returned for paths that would escape the storage root.
	ErrForbidden = errors.New("path escapes storage root")
	// ErrNotFound is returned for paths that do not name a regular file.
	ErrNotFound = errors.New("file not found")
)

// Server resolves and serves files beneath a single root directory.
type Server struct {
	root  string
	retry filesystem.RetryConfig
}

// New creates a Server for root. A relative root is made absolute.
func New(root string) *Server {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &Server{
		root:  abs,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Resolve maps a requested relative path to an absolute path under the root.
func (s *Server) Resolve(requested string) (string, error) {
	if err := checkRequested(requested); err != nil {
		return "", err
	}
	clean := strings.Trim(requested, "/")
	if clean == "" {
		return "", ErrNotFound
	}

	// The name as routed is joined; decoded forms were only inspected, so a
	// stored name containing a literal %XX still resolves.
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if !within(s.root, full) {
		return "", ErrForbidden
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", clean, err)
	}

	rootResolved, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	if !within(rootResolved, resolved) {
		return "", ErrForbidden
	}

	info, err := filesystem.StatWithRetry(resolved, s.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", clean, err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return resolved, nil
}

// Serve writes the file named by requested. ErrForbidden and ErrNotFound are
// returned before anything is written so callers can choose the error body.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, requested string) error {
	path, err := s.Resolve(requested)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			logging.Warn("Rejected file request outside storage root: %q", requested)
		}
		return err
	}

	f, err := filesystem.OpenWithRetry(path, s.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("open %s: %w", requested, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", requested, err)
	}

	w.Header().Set("Content-Type", mediatypes.ContentTypeForPath(path))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}

// checkRequested rejects requested if it, or any of its percent-decoded
// forms, could name something outside the root.
func checkRequested(requested string) error {
	current := requested
	for i := 0; i < maxDecodeDepth; i++ {
		if err := checkForm(current); err != nil {
			return err
		}
		decoded, err := url.PathUnescape(current)
		if err != nil || decoded == current {
			return nil
		}
		current = decoded
	}
	return checkForm(current)
}

func checkForm(p string) error {
	if strings.ContainsRune(p, 0) {
		return ErrForbidden
	}

	slashed := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return ErrForbidden
	}
	if len(slashed) >= 2 && slashed[1] == ':' {
		return ErrForbidden
	}

	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return ErrForbidden
		}
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
