package middleware

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/session"
)

// accessFields is the #Fields directive. cs-bytes is the request body
// actually received, so for uploads it is the upload size. x-session is the
// session a request created or read from.
const accessFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes cs-bytes time-taken x-session sc(Content-Type) cs(User-Agent)"

const softwareName = "VideoConverter/1.0"

// LoggingConfig selects which routes reach the access log. Uploads and
// unknown routes are always logged.
type LoggingConfig struct {
	// LogDownloads logs requests for converted files.
	LogDownloads bool
	// LogHealthChecks logs the probe endpoints.
	LogHealthChecks bool
}

// DefaultLoggingConfig logs health checks but not downloads, which a player
// seeking through a video turns into many Range requests.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

func (c LoggingConfig) skips(kind routeKind) bool {
	switch kind {
	case routeDownload:
		return !c.LogDownloads
	case routeHealth:
		return !c.LogHealthChecks
	default:
		return false
	}
}

// accessRecorder captures the response status and size for the access log.
type accessRecorder struct {
	http.ResponseWriter
	status int
	sent   int64
}

func (a *accessRecorder) WriteHeader(code int) {
	if a.status == 0 {
		a.status = code
	}
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(b []byte) (int, error) {
	if a.status == 0 {
		a.status = http.StatusOK
	}
	n, err := a.ResponseWriter.Write(b)
	a.sent += int64(n)
	return n, err
}

func (a *accessRecorder) Flush() {
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (a *accessRecorder) statusCode() int {
	if a.status == 0 {
		return http.StatusOK
	}
	return a.status
}

// bodyCounter counts request body bytes read by the handler.
type bodyCounter struct {
	io.ReadCloser
	n int64
}

func (b *bodyCounter) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

// Logger writes one W3C extended log line per request. The directives are
// written once, when the middleware is built.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logging.Println("#Software: " + softwareName)
	logging.Println("#Fields: " + accessFields)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt := classify(r.URL.Path)
			if config.skips(rt.kind) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &accessRecorder{ResponseWriter: w}
			body := &bodyCounter{ReadCloser: r.Body}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = body
			}

			next.ServeHTTP(rec, r)

			logging.Println(accessLine(r, rec, body.n, rt, time.Since(start)))
		})
	}
}

// accessLine renders one entry in accessFields order. Every client supplied
// value goes through field so it cannot break the line.
func accessLine(r *http.Request, rec *accessRecorder, received int64, rt route, took time.Duration) string {
	now := time.Now().UTC()

	sessionID := rec.Header().Get(session.Header)
	if sessionID == "" {
		sessionID = rt.session
	}

	return strings.Join([]string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		field(clientIP(r)),
		field(r.Method),
		field(r.URL.Path),
		field(r.URL.RawQuery),
		strconv.Itoa(rec.statusCode()),
		strconv.FormatInt(rec.sent, 10),
		strconv.FormatInt(received, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		field(sessionID),
		field(rec.Header().Get("Content-Type")),
		field(r.Header.Get("User-Agent")),
	}, " ")
}

// field makes s safe for a space separated log line. Line breaks become
// spaces and other control characters are dropped. Empty values are "-".
func field(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)

	if s == "" {
		return "-"
	}
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
