package server

import (
	"net/http"
	"time"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/observability"
)

// chain applies logging, metrics, panic recovery and CORS around a handler.
func chain(rec metrics.Recorder, webOrigin string, next http.Handler) http.Handler {
	return loggingMiddleware(rec, corsMiddleware(webOrigin, recoveryMiddleware(next)))
}

// loggingMiddleware logs method, path, status and duration for every request
// and feeds the HTTP metrics.
func loggingMiddleware(rec metrics.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)

		observability.InfoContext(r.Context(), "HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.HTTPStatus(wrapped.statusCode),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.RemoteAddr(r.RemoteAddr))
		rec.ObserveHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// recoveryMiddleware turns handler panics into 500 responses.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.ErrorContext(r.Context(), "HTTP handler panic",
					logfields.Path(r.URL.Path),
					logfields.Method(r.Method))
				writeError(w, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows the configured web origin. An empty origin disables
// CORS headers entirely.
func corsMiddleware(webOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if webOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", webOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
