package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"video-converter/internal/metrics"
	"video-converter/internal/session"
)

const testSessionPath = "/6f1c2d8e-4b1a-4c8e-9a57-0c1f3b2e7d44/converted.mp4"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// captureLog redirects the standard logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestAccessRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &accessRecorder{ResponseWriter: w}

	if rec.statusCode() != http.StatusOK {
		t.Errorf("status before any write = %d, want 200", rec.statusCode())
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	n, err := rec.Write([]byte("test data"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if rec.statusCode() != http.StatusNotFound {
		t.Errorf("status = %d, want first WriteHeader to win", rec.statusCode())
	}
	if n != 9 || rec.sent != 9 {
		t.Errorf("wrote %d, sent %d, want 9", n, rec.sent)
	}
}

func TestClassify(t *testing.T) {
	const id = "6f1c2d8e-4b1a-4c8e-9a57-0c1f3b2e7d44"

	tests := []struct {
		path        string
		wantKind    routeKind
		wantSession string
	}{
		{"/process-video", routeUpload, ""},
		{"/readyz", routeHealth, ""},
		{"/version", routeInfo, ""},
		{testSessionPath, routeDownload, id},
		{"/Uploads/" + id + "/converted.mp4", routeDownload, id},
		{"/Uploads/notes.txt", routeDownload, ""},
		{"/not-a-session/converted.mp4", routeOther, ""},
		{"/" + id, routeOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rt := classify(tt.path)
			if rt.kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", rt.kind, tt.wantKind)
			}
			if rt.session != tt.wantSession {
				t.Errorf("session = %q, want %q", rt.session, tt.wantSession)
			}
		})
	}
}

func TestLoggerRouteSkipping(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{"logs uploads", "/process-video", LoggingConfig{}, true},
		{"logs unknown routes", "/wp-login.php", LoggingConfig{}, true},
		{"skips downloads by default", testSessionPath, DefaultLoggingConfig(), false},
		{"skips legacy downloads by default", "/Uploads/a/b.mp4", DefaultLoggingConfig(), false},
		{"logs downloads when enabled", testSessionPath, LoggingConfig{LogDownloads: true}, true},
		{"logs health checks by default", "/health", DefaultLoggingConfig(), true},
		{"skips health checks when disabled", "/readyz", LoggingConfig{LogHealthChecks: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Logger(tt.config)(okHandler())
			buf := captureLog(t)

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
			logged := strings.Contains(buf.String(), " GET "+tt.path+" ")
			if logged != tt.expectLogging {
				t.Errorf("logged = %v, want %v; output %q", logged, tt.expectLogging, buf.String())
			}
		})
	}
}

func TestLoggerDirectives(t *testing.T) {
	buf := captureLog(t)

	Logger(DefaultLoggingConfig())

	out := buf.String()
	if !strings.Contains(out, "#Software: VideoConverter/1.0") {
		t.Errorf("missing #Software directive: %q", out)
	}
	if !strings.Contains(out, "cs-bytes time-taken x-session") {
		t.Errorf("missing upload fields in #Fields directive: %q", out)
	}
}

func TestLoggerRecordsUpload(t *testing.T) {
	const id = "0b7e3f52-9c3d-4a61-8f0e-5d2a6c1b9e07"

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set(session.Header, id)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	buf := captureLog(t)

	req := httptest.NewRequest(http.MethodPost, "/process-video", strings.NewReader(strings.Repeat("v", 4096)))
	req.RemoteAddr = "192.0.2.10:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	want := "192.0.2.10 POST /process-video - 200 15 4096 "
	if !strings.Contains(line, want) {
		t.Errorf("log line %q missing %q", line, want)
	}
	if !strings.Contains(line, " "+id+" application/json ") {
		t.Errorf("log line %q missing session and content type", line)
	}
}

func TestLoggerRecordsDownloadSession(t *testing.T) {
	handler := Logger(LoggingConfig{LogDownloads: true})(okHandler())
	buf := captureLog(t)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, testSessionPath, http.NoBody))

	line := buf.String()
	if !strings.Contains(line, " 200 2 0 ") {
		t.Errorf("log line %q missing status, sent and received bytes", line)
	}
	if !strings.Contains(line, " 6f1c2d8e-4b1a-4c8e-9a57-0c1f3b2e7d44 ") {
		t.Errorf("log line %q missing session from path", line)
	}
}

func TestLoggerLineInjection(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	buf := captureLog(t)

	req := httptest.NewRequest(http.MethodPost, "/process-video?x=1", http.NoBody)
	req.Header.Set("User-Agent", "curl/8.0\r\nforged line")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"POST /process-video x=1 400 0 0 ", " - - ", `"curl/8.0  forged line"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\n") {
		t.Errorf("log injection produced multiple lines: %q", line)
	}
}

func TestField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", "-"},
		{"a\nb", `"a b"`},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred\x7f", "[31mred"},
		{`say "hi"`, `"say ""hi"""`},
	}
	for _, tt := range tests {
		if got := field(tt.in); got != tt.want {
			t.Errorf("field(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "10.0.0.2:1", "203.0.113.2"},
		{"remote addr", nil, "198.51.100.7:4321", "198.51.100.7"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:4321", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/process-video", "/process-video"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{testSessionPath, "/{session}/{file}"},
		{"/6F1C2D8E-4B1A-4C8E-9A57-0C1F3B2E7D44/converted.mp4", "/{session}/{file}"},
		{"/not-a-session/converted.mp4", "/{other}"},
		{"/Uploads/6f1c2d8e-4b1a-4c8e-9a57-0c1f3b2e7d44/converted.mp4", "/Uploads/{path}"},
		{"/wp-admin/install.php", "/{other}"},
		{"/a/b/c", "/{other}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/{session}/{file}", "404")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, testSessionPath, http.NoBody))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("request counter advanced by %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsInFlight); got != 0 {
		t.Errorf("in-flight gauge = %v after request, want 0", got)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	handlerCalled := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if !handlerCalled {
		t.Error("Expected handler to be called")
	}
	if testutil.ToFloat64(counter) != before {
		t.Error("skipped path should not be recorded")
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		config      CORSConfig
		method      string
		headers     map[string]string
		wantStatus  int
		wantOrigin  string
		wantMethods bool
		wantNext    bool
	}{
		{
			name:       "no origin passes through",
			config:     DefaultCORSConfig(),
			method:     http.MethodPost,
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "wildcard simple request",
			config:     DefaultCORSConfig(),
			method:     http.MethodPost,
			headers:    map[string]string{"Origin": "https://app.example.com"},
			wantStatus: http.StatusOK,
			wantOrigin: "*",
			wantNext:   true,
		},
		{
			name:   "wildcard preflight",
			config: DefaultCORSConfig(),
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                        "https://app.example.com",
				"Access-Control-Request-Method": "POST",
			},
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "*",
			wantMethods: true,
		},
		{
			name:   "listed origin is echoed",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com/"}, AllowedMethods: []string{"POST"}},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                        "https://app.example.com",
				"Access-Control-Request-Method": "POST",
			},
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://app.example.com",
			wantMethods: true,
		},
		{
			name:   "unlisted origin preflight is refused",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                        "https://evil.example.com",
				"Access-Control-Request-Method": "POST",
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unlisted origin simple request gets no headers",
			config:     CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://evil.example.com"},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := CORS(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/process-video", http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods") != ""; got != tt.wantMethods {
				t.Errorf("Allow-Methods present = %v, want %v", got, tt.wantMethods)
			}
			if nextCalled != tt.wantNext {
				t.Errorf("next called = %v, want %v", nextCalled, tt.wantNext)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	captureLog(t)
	handler := Recover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	before := testutil.ToFloat64(metrics.HTTPPanicsRecovered)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/process-video", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["status"] != "error" {
		t.Errorf("body = %v", body)
	}
	if got := testutil.ToFloat64(metrics.HTTPPanicsRecovered) - before; got != 1 {
		t.Errorf("panic counter advanced by %v, want 1", got)
	}
}

func TestRecoverRepanicsAbortHandler(t *testing.T) {
	handler := Recover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", r)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}
