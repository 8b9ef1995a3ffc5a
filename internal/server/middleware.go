package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"chainstage/internal/metrics"
)

// requireAuth gates a handler behind the configured bearer token. With no
// token configured the handler is open.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="jobs"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// instrument wraps handlers to record request metrics.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		route := routeLabel(r.URL.Path)
		status := statusLabel(ww.status)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures the status code for metric labeling.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// routeLabel collapses variable path segments so label cardinality stays
// bounded no matter what clients request.
func routeLabel(path string) string {
	switch {
	case path == "/healthz" || path == "/metrics" || path == "/jobs/discover" ||
		path == "/jobs/validate" || path == "/jobs/resolve-reserves":
		return path
	case strings.HasPrefix(path, "/jobs/refresh/"):
		return "/jobs/refresh"
	case path == "/webhook" || strings.HasPrefix(path, "/webhook/"):
		return "/webhook"
	default:
		return "other"
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
