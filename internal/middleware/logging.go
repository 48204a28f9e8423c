// Package middleware provides HTTP middleware components for the ratewings API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// adminSubjectKey is the context key for the authenticated admin subject.
type adminSubjectKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// SetAdminSubject stores the admin token subject in the context.
// Called by the admin auth middleware after the bearer token is verified.
func SetAdminSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminSubjectKey{}, subject)
}

// GetAdminSubject retrieves the admin subject from context. Returns empty string if not present.
func GetAdminSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(adminSubjectKey{}).(string); ok {
		return sub
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// Handlers call this before writing an error response.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}

// contextCarrier is implemented by response writers that can carry a handler's
// request context back up to the middleware that wrapped them.
type contextCarrier interface {
	setResponseContext(ctx context.Context)
}

// UpdateResponseContext hands ctx to the logging middleware wrapping w so that
// values set by the handler (such as the error code) appear in the request log.
// Writers not produced by this package are unwrapped via Unwrap.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	for w != nil {
		if c, ok := w.(contextCarrier); ok {
			c.setResponseContext(ctx)
			return
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
	ctx         context.Context
}

// WriteHeader captures the status code before writing it.
// Only the first call sets the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap returns the underlying writer for http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) setResponseContext(ctx context.Context) {
	rw.ctx = ctx
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), size, request ID, admin subject (if present)
// and error_code for error responses.
//
// If a handler panics, the log entry is not written.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			latency := time.Since(start).Milliseconds()

			// Handlers may have derived a new context; prefer it for request-scoped values.
			ctx := r.Context()
			if rw.ctx != nil {
				ctx = rw.ctx
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if subject := GetAdminSubject(ctx); subject != "" {
				attrs = append(attrs, slog.String("admin", subject))
			}

			if rw.statusCode >= 400 {
				if errorCode := GetErrorCode(ctx); errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(ctx, slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(ctx, slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
