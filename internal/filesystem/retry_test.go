package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
	volumes  []string
}

func (o *recordingObserver) ObserveRetryAttempt(_, volume string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
	o.volumes = append(o.volumes, volume)
}

func (o *recordingObserver) ObserveRetrySuccess(_, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.success++
}

func (o *recordingObserver) ObserveRetryFailure(_, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *recordingObserver) ObserveRetryDuration(_, _ string, _ float64) {}

func (o *recordingObserver) ObserveStaleError(_, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	storage := filepath.Join(root, "uploads")
	staging := filepath.Join(root, "uploads", "staging")

	vr := NewVolumeResolver(map[string]string{
		"storage": storage,
		"staging": staging,
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"storage root itself", storage, "storage"},
		{"file in session", filepath.Join(storage, "abc", "converted.mp4"), "storage"},
		{"longest prefix wins", filepath.Join(staging, "upload-1.tmp"), "staging"},
		{"sibling with shared prefix", storage + "-other/file", "unknown"},
		{"outside", filepath.Join(root, "elsewhere"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "converted.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(dir, "missing"), fastRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "converted.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	if _, err := OpenWithRetry(filepath.Join(dir, "missing"), fastRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	config := fastRetryConfig()
	config.VolumeResolver = NewVolumeResolver(map[string]string{"storage": "/srv/uploads"})

	calls := 0
	got, err := withRetry("stat", "/srv/uploads/x/converted.mp4", config, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 7 {
		t.Errorf("withRetry() = %d, want 7", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 || obs.failures != 0 {
		t.Errorf("observer = %+v", obs)
	}
	for _, v := range obs.volumes {
		if v != "storage" {
			t.Errorf("volume label = %q, want storage", v)
		}
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	_, err := withRetry("open", "/tmp/x", fastRetryConfig(), func() (string, error) {
		calls++
		return "", syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("expected ESTALE, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestWithRetry_NonStaleErrorIsNotRetried(t *testing.T) {
	calls := 0
	_, err := withRetry("stat", "/tmp/x", fastRetryConfig(), func() (bool, error) {
		calls++
		return false, syscall.EACCES
	})
	if !errors.Is(err, syscall.EACCES) {
		t.Errorf("expected EACCES, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
