package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are paths reported to metrics unchanged.
var staticRoutes = map[string]bool{
	"/":                     true,
	"/locations":            true,
	"/locations/duplicates": true,
	"/locations/merge":      true,
	"/reviews":              true,
	"/health":               true,
	"/ready":                true,
	"/metrics":              true,
}

// normalizePath maps request paths to route patterns to keep label cardinality
// bounded, e.g. /locations/by-id/42 becomes /locations/by-id/{id}.
// Trailing slashes are dropped so /locations/ and /locations share a series.
func normalizePath(path string) string {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if staticRoutes[path] {
		return path
	}

	for _, prefix := range []string{"/locations/by-id/", "/reviews/by-id/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return prefix + "{id}"
		}
	}

	// Unknown paths collapse into one series so scanners cannot grow the label set.
	return "other"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap returns the underlying writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records request duration, sizes and counts.
// Health check endpoints (/health, /ready) are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if r.ContentLength > 0 {
				requestSize = r.ContentLength
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
