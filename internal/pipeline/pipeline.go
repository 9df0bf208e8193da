package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/mediatypes"
	"video-converter/internal/metrics"
	"video-converter/internal/session"
	"video-converter/internal/transcoder"
)

const (
	// DefaultMaxUploadBytes is the upload cap when none is configured (1 GiB).
	DefaultMaxUploadBytes int64 = 1 << 30
	// MaxUploadLimit is the largest usable cap. The headroom covers the
	// multipart framing the HTTP layer allows on top of the file.
	MaxUploadLimit int64 = math.MaxInt64 - 1<<20
)

// SessionAllocator hands out isolated output directories.
type SessionAllocator interface {
	NewSession() (session.Session, error)
}

// Transcoder converts a staged file into the session output.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) transcoder.Result
}

// Config configures a Pipeline.
type Config struct {
	// StagingDir holds staged uploads. Empty means os.TempDir().
	StagingDir string
	// MaxUploadBytes rejects larger uploads. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// OutputName is the converted file name inside a session directory.
	OutputName string
}

// Upload is an inbound file, validated at the HTTP boundary.
type Upload struct {
	// File is nil when the request carried no file part.
	File     io.Reader
	Filename string
	// Size is the declared size, or -1 when unknown.
	Size int64
}

// Result describes a successful upload.
type Result struct {
	SessionID   string
	OutputPath  string
	OutputName  string
	StagedBytes int64
	Duration    time.Duration
}

// Pipeline stages an upload, allocates a session, transcodes into it and
// always removes the staged file.
type Pipeline struct {
	cfg        Config
	sessions   SessionAllocator
	transcoder Transcoder
}

// New creates a Pipeline, filling in defaults for unset Config fields.
func New(cfg Config, sessions SessionAllocator, trans Transcoder) *Pipeline {
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MaxUploadBytes > MaxUploadLimit {
		cfg.MaxUploadBytes = MaxUploadLimit
	}
	if cfg.OutputName == "" {
		cfg.OutputName = session.DefaultOutputName
	}

	return &Pipeline{cfg: cfg, sessions: sessions, transcoder: trans}
}

// MaxUploadBytes returns the effective upload cap.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.cfg.MaxUploadBytes
}

// OutputName returns the converted file name used in every session.
func (p *Pipeline) OutputName() string {
	return p.cfg.OutputName
}

// HandleUpload runs one upload through the pipeline. Every failure is an
// *Error. On a transcode failure the session directory is left in place for
// inspection. Concurrent calls share nothing but the filesystem.
func (p *Pipeline) HandleUpload(ctx context.Context, up Upload) (*Result, error) {
	start := time.Now()

	res, err := p.handle(ctx, up)

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.UploadsTotal.WithLabelValues(outcome).Inc()

	if res != nil {
		res.Duration = time.Since(start)
	}
	return res, err
}

func (p *Pipeline) handle(ctx context.Context, up Upload) (*Result, error) {
	if up.File == nil {
		return nil, clientError("No video file uploaded", ErrNoFile)
	}
	if strings.TrimSpace(up.Filename) == "" {
		return nil, clientError("No file selected", ErrEmptyFilename)
	}
	if up.Size > p.cfg.MaxUploadBytes {
		return nil, p.tooLarge()
	}

	staged, err := p.acquireStaging()
	if err != nil {
		return nil, err
	}
	defer p.releaseStaging(staged)

	n, err := p.receive(staged, up.File)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Observe(float64(n))
	metrics.UploadsByContainer.WithLabelValues(containerLabel(up.Filename)).Inc()

	sess, err := p.sessions.NewSession()
	if err != nil {
		return nil, &Error{Kind: KindStorage, Message: "Failed to create session directory", Err: err}
	}

	logging.Info("Received upload %q (%d bytes) for session %s", up.Filename, n, sess.ID)

	dst := filepath.Join(sess.Dir, p.cfg.OutputName)

	// A launched transcode runs to completion even if the client goes away.
	tr := p.transcoder.Transcode(context.WithoutCancel(ctx), staged.Name(), dst)

	switch tr.Outcome {
	case transcoder.OutcomeSuccess:
		return &Result{
			SessionID:   sess.ID,
			OutputPath:  tr.Path,
			OutputName:  p.cfg.OutputName,
			StagedBytes: n,
		}, nil
	case transcoder.OutcomeToolMissing:
		return nil, &Error{
			Kind:      KindToolMissing,
			Message:   "FFmpeg is not installed or not on PATH. Install it and add it to PATH",
			SessionID: sess.ID,
			Err:       tr.Err(),
		}
	default:
		logging.Warn("Session %s kept for inspection after failed transcode", sess.ID)
		return nil, &Error{
			Kind:       KindTranscodeFailed,
			Message:    "FFmpeg error",
			Diagnostic: diagnosticFor(tr),
			SessionID:  sess.ID,
			Err:        tr.Err(),
		}
	}
}

// stagedFile is a StagedUpload: a temp file owned by a single request.
type stagedFile struct {
	*os.File
}

func (p *Pipeline) acquireStaging() (*stagedFile, error) {
	f, err := os.CreateTemp(p.cfg.StagingDir, "upload-*.tmp")
	if err != nil {
		return nil, &Error{Kind: KindStorage, Message: "Failed to stage upload", Err: err}
	}
	metrics.StagedUploadsInFlight.Inc()
	logging.Debug("Staging upload at %s", f.Name())
	return &stagedFile{File: f}, nil
}

// releaseStaging closes and removes the staged file. Failures are logged,
// never returned: they do not change what the client sees.
func (p *Pipeline) releaseStaging(f *stagedFile) {
	metrics.StagedUploadsInFlight.Dec()

	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		logging.Warn("failed to close staged upload %s: %v", f.Name(), err)
	}
	if err := os.Remove(f.Name()); err != nil {
		metrics.StagedUploadCleanupErrors.Inc()
		logging.Warn("failed to remove staged upload %s: %v", f.Name(), err)
	}
}

// receive copies the whole upload into the staged file before anything is
// transcoded. It reads at most MaxUploadBytes+1 bytes so oversize is
// detected without consuming an unbounded body.
func (p *Pipeline) receive(f *stagedFile, r io.Reader) (int64, error) {
	src := &readTracker{r: io.LimitReader(r, p.cfg.MaxUploadBytes+1)}

	n, err := io.Copy(f, src)
	if err != nil {
		if src.err != nil {
			return n, clientError("Failed to read uploaded file", fmt.Errorf("%w: %w", ErrUnreadable, src.err))
		}
		return n, &Error{Kind: KindStorage, Message: "Failed to stage upload", Err: err}
	}
	if err := f.Close(); err != nil {
		return n, &Error{Kind: KindStorage, Message: "Failed to stage upload", Err: err}
	}

	if n > p.cfg.MaxUploadBytes {
		return n, p.tooLarge()
	}
	if n == 0 {
		return n, clientError("Uploaded file is empty", ErrEmptyFile)
	}
	return n, nil
}

func (p *Pipeline) tooLarge() *Error {
	return TooLarge(p.cfg.MaxUploadBytes)
}

// TooLarge returns the client error for an upload over maxBytes.
func TooLarge(maxBytes int64) *Error {
	return clientError(
		fmt.Sprintf("File too large: maximum upload size is %s", formatBytes(maxBytes)),
		ErrTooLarge,
	)
}

// readTracker remembers the last read error so a failed copy can be blamed
// on the client or on the disk.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// containerLabel is the metric label for an upload's file name: its
// extension when it is a known media container, otherwise "other". The
// transcoder probes the content either way.
func containerLabel(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mediatypes.IsMediaFile(ext) {
		return ext
	}
	return "other"
}

func diagnosticFor(tr transcoder.Result) string {
	if d := truncateDiagnostic(tr.Stderr); d != "" {
		return d
	}
	if tr.Cause != nil {
		return tr.Cause.Error()
	}
	return fmt.Sprintf("exit code %d", tr.ExitCode)
}

// Locator builds the public URL for a session output:
// <base>/<sessionID>/<name>.
func Locator(base, sessionID, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(sessionID) + "/" + url.PathEscape(name)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
