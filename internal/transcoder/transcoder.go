package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
)

// DefaultBinary is the transcoding executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// waitDelay bounds how long Wait keeps draining output pipes after the
// process is killed.
const waitDelay = 5 * time.Second

// Outcome tags a Result.
type Outcome int

const (
	// OutcomeSuccess means the tool exited zero and wrote a non-empty output.
	OutcomeSuccess Outcome = iota
	// OutcomeToolMissing means the executable could not be located or launched.
	OutcomeToolMissing
	// OutcomeToolFailed means the tool ran but exited non-zero or produced no output.
	OutcomeToolFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeToolMissing:
		return "tool_missing"
	case OutcomeToolFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Result is the outcome of one Transcode call.
type Result struct {
	Outcome  Outcome
	Path     string // output path, set on success
	ExitCode int    // -1 when the process never exited normally
	Stdout   string
	Stderr   string
	Duration time.Duration
	Cause    error // underlying launch/wait error, if any
}

// OK reports whether the transcode succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Err converts a failed Result into a typed error. It returns nil on success.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeToolMissing:
		return &ToolMissingError{Err: r.Cause}
	default:
		return &TranscodeFailedError{ExitCode: r.ExitCode, Stderr: r.Stderr, Err: r.Cause}
	}
}

// Config configures a Transcoder.
type Config struct {
	// Binary is the executable name or path. Defaults to DefaultBinary.
	Binary string
	// Timeout bounds a single transcode. Zero means no limit.
	Timeout time.Duration
}

// Transcoder runs the external conversion tool synchronously.
type Transcoder struct {
	binary  string
	timeout time.Duration

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates a new Transcoder instance.
func New(cfg Config) *Transcoder {
	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	return &Transcoder{
		binary:    binary,
		timeout:   cfg.Timeout,
		processes: make(map[string]*exec.Cmd),
	}
}

// Binary returns the configured executable.
func (t *Transcoder) Binary() string {
	return t.binary
}

// Args returns the fixed argument list used to convert src into dst:
// overwrite unconditionally, H.264 video, AAC audio, with the experimental
// codec gate relaxed for older AAC encoders.
func Args(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-strict", "-2",
		"-movflags", "+faststart",
		dst,
	}
}

// Transcode converts src into dst and blocks until the tool exits. Both
// output streams are captured in full. src is never written.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string) Result {
	start := time.Now()

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	res := t.run(ctx, src, dst)
	res.Duration = time.Since(start)

	metrics.TranscoderJobsTotal.WithLabelValues(res.Outcome.String()).Inc()
	metrics.TranscoderJobDuration.Observe(res.Duration.Seconds())

	switch res.Outcome {
	case OutcomeSuccess:
		logging.Debug("%s output for %s: %s", t.binary, dst, res.Stdout)
		logging.Info("Transcoded %s in %v", dst, res.Duration.Round(time.Millisecond))
	case OutcomeToolMissing:
		logging.Error("%s could not be launched: %v", t.binary, res.Cause)
	default:
		logging.Error("%s failed for %s (exit %d): %v", t.binary, dst, res.ExitCode, res.Cause)
		logging.Debug("%s stderr: %s", t.binary, res.Stderr)
	}

	return res
}

func (t *Transcoder) run(ctx context.Context, src, dst string) Result {
	if sameFile(src, dst) {
		return Result{Outcome: OutcomeToolFailed, ExitCode: -1,
			Cause: fmt.Errorf("source and destination are the same file: %s", src)}
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.binary, Args(src, dst)...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Outcome: OutcomeToolFailed, ExitCode: -1, Cause: ctxErr}
		}
		// Not found, not executable, bad interpreter: it never ran.
		return Result{Outcome: OutcomeToolMissing, ExitCode: -1, Cause: err}
	}

	t.track(dst, cmd)
	defer t.untrack(dst)

	waitErr := cmd.Wait()

	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if waitErr != nil {
		res.Outcome = OutcomeToolFailed
		res.Cause = waitErr
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Cause = fmt.Errorf("%w: %w", ctxErr, waitErr)
		}
		return res
	}

	info, err := os.Stat(dst)
	switch {
	case err != nil:
		res.Outcome = OutcomeToolFailed
		res.Cause = fmt.Errorf("tool exited successfully but produced no output: %w", err)
	case info.Size() == 0:
		res.Outcome = OutcomeToolFailed
		res.Cause = errors.New("tool exited successfully but output is empty")
	default:
		res.Outcome = OutcomeSuccess
		res.Path = dst
	}

	return res
}

func (t *Transcoder) track(key string, cmd *exec.Cmd) {
	t.processMu.Lock()
	t.processes[key] = cmd
	t.processMu.Unlock()
}

func (t *Transcoder) untrack(key string) {
	t.processMu.Lock()
	delete(t.processes, key)
	t.processMu.Unlock()
}

// ActiveJobs returns the number of transcodes currently running.
func (t *Transcoder) ActiveJobs() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup stops all active transcoding processes. Called on shutdown.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process for %s: %v", path, err)
			}
		}
	}
}

// Available resolves the configured binary and returns its path.
func (t *Transcoder) Available() (string, error) {
	path, err := exec.LookPath(t.binary)
	if err != nil {
		return "", &ToolMissingError{Err: err}
	}
	return path, nil
}

// Version runs "<binary> -version" and returns the first output line.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, t.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", t.binary, err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
