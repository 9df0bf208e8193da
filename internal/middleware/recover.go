package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
)

// Recover returns middleware that turns a handler panic into a 500 JSON
// response and keeps the server running.
func Recover() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http abort the connection as it normally would.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				metrics.HTTPPanicsRecovered.Inc()
				logging.Error("panic serving %s %s: %v\n%s",
					field(r.Method), field(r.URL.Path), rec, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(w).Encode(map[string]string{
					"status": "error",
					"msg":    "Internal server error",
				}); err != nil {
					logging.Error("failed to encode panic response: %v", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
