package fileserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const testSession = "6f1c2d8e-4b1a-4c8e-9a57-0c1f3b2e7d44"

func setupRoot(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "Uploads")
	if err := os.MkdirAll(filepath.Join(root, testSession), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, testSession, "converted.mp4"), []byte("mp4 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A file next to the root that traversal attempts aim for.
	if err := os.WriteFile(filepath.Join(base, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	return base, root
}

func TestResolve(t *testing.T) {
	_, root := setupRoot(t)
	s := New(root)

	tests := []struct {
		name      string
		requested string
		wantErr   error
	}{
		{"session file", testSession + "/converted.mp4", nil},
		{"doubled separator", testSession + "//converted.mp4", nil},
		{"missing file", testSession + "/other.mp4", ErrNotFound},
		{"missing session", "00000000-0000-4000-8000-000000000000/converted.mp4", ErrNotFound},
		{"directory", testSession, ErrNotFound},
		{"empty", "", ErrNotFound},
		{"plain traversal", "../secret.txt", ErrForbidden},
		{"nested traversal", testSession + "/../../secret.txt", ErrForbidden},
		{"backslash traversal", `..\secret.txt`, ErrForbidden},
		{"encoded dots", "%2e%2e/secret.txt", ErrForbidden},
		{"encoded slash", "..%2fsecret.txt", ErrForbidden},
		{"encoded backslash", "..%5csecret.txt", ErrForbidden},
		{"double encoded", "%252e%252e%252fsecret.txt", ErrForbidden},
		{"triple encoded", "%25252e%25252e/secret.txt", ErrForbidden},
		{"absolute path", "/etc/passwd", ErrForbidden},
		{"encoded absolute path", "%2fetc%2fpasswd", ErrForbidden},
		{"volume path", `C:\Windows\win.ini`, ErrForbidden},
		{"nul byte", testSession + "/converted.mp4\x00.txt", ErrForbidden},
		{"encoded nul byte", testSession + "/converted.mp4%00.txt", ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.requested)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.requested, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.requested, err)
			}
			if filepath.Base(got) != "converted.mp4" {
				t.Errorf("Resolve(%q) = %q", tt.requested, got)
			}
		})
	}
}

func TestResolve_LiteralPercentInName(t *testing.T) {
	_, root := setupRoot(t)
	name := "clip%20final.mp4"
	if err := os.WriteFile(filepath.Join(root, testSession, name), []byte("literal"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(root)

	got, err := s.Resolve(testSession + "/" + name)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(got) != name {
		t.Errorf("Resolve() = %q, want the literal name", got)
	}

	// The decoded spelling names a different, missing file.
	if _, err := s.Resolve(testSession + "/clip final.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(decoded) error = %v, want ErrNotFound", err)
	}
}

func TestResolve_SymlinkOutsideRoot(t *testing.T) {
	base, root := setupRoot(t)
	link := filepath.Join(root, testSession, "escape.mp4")
	if err := os.Symlink(filepath.Join(base, "secret.txt"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := New(root).Resolve(testSession + "/escape.mp4"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Resolve(symlink) error = %v, want ErrForbidden", err)
	}
}

func TestResolve_SymlinkInsideRoot(t *testing.T) {
	_, root := setupRoot(t)
	link := filepath.Join(root, testSession, "alias.mp4")
	if err := os.Symlink(filepath.Join(root, testSession, "converted.mp4"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := New(root).Resolve(testSession + "/alias.mp4"); err != nil {
		t.Errorf("Resolve(internal symlink) error = %v", err)
	}
}

func TestResolve_RelativeRoot(t *testing.T) {
	_, root := setupRoot(t)
	chdir(t, filepath.Dir(root))

	path, err := New("Uploads").Resolve(testSession + "/converted.mp4")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("Resolve() = %q, want absolute", path)
	}
}

func TestServe(t *testing.T) {
	_, root := setupRoot(t)
	s := New(root)

	req := httptest.NewRequest(http.MethodGet, "/"+testSession+"/converted.mp4", nil)
	rr := httptest.NewRecorder()

	if err := s.Serve(rr, req, testSession+"/converted.mp4"); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
	if rr.Body.String() != "mp4 bytes" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestServe_Range(t *testing.T) {
	_, root := setupRoot(t)
	s := New(root)

	req := httptest.NewRequest(http.MethodGet, "/"+testSession+"/converted.mp4", nil)
	req.Header.Set("Range", "bytes=0-2")
	rr := httptest.NewRecorder()

	if err := s.Serve(rr, req, testSession+"/converted.mp4"); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if rr.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rr.Code)
	}
	if rr.Body.String() != "mp4" {
		t.Errorf("body = %q, want mp4", rr.Body.String())
	}
}

func TestServe_ErrorsWriteNothing(t *testing.T) {
	_, root := setupRoot(t)
	s := New(root)

	for _, requested := range []string{"../secret.txt", testSession + "/missing.mp4"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)

		if err := s.Serve(rr, req, requested); err == nil {
			t.Errorf("Serve(%q) expected error", requested)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("Serve(%q) wrote %q", requested, rr.Body.String())
		}
	}
}
