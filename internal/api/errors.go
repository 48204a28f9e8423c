// Package api provides the HTTP handlers of the ratewings API and its JSON error envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/middleware"
)

// Error codes written in the envelope.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates a missing or invalid admin token.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = middleware.RateLimitedCode

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request, such as an undecodable body
	// or an unsupported method.
	ErrCodeBadRequest = "bad_request"
)

// ErrorResponse is the error body: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response.
//
// Callers set the code on the context first so the logging middleware can
// report it:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Location not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeCodedError sets the code on the request context and writes the envelope
// with the status mapped from code.
func writeCodedError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeValidationError writes a 400 validation_error.
func writeValidationError(w http.ResponseWriter, r *http.Request, message string) {
	writeCodedError(w, r, ErrCodeValidation, message)
}

// writeDomainError maps errors returned by the location service to the envelope.
// Unknown errors are logged and reported as internal errors.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, location.ErrLocationNotFound):
		writeCodedError(w, r, ErrCodeNotFound, "Location not found")
	case errors.Is(err, location.ErrReviewNotFound):
		writeCodedError(w, r, ErrCodeNotFound, "Review not found")
	case errors.Is(err, location.ErrSameLocation),
		errors.Is(err, location.ErrEmptyName),
		errors.Is(err, location.ErrHeatRange),
		errors.Is(err, geo.ErrLatitudeRange),
		errors.Is(err, geo.ErrLongitudeRange),
		errors.Is(err, geo.ErrPartialPoint):
		writeValidationError(w, r, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeCodedError(w, r, ErrCodeInternal, "Internal server error")
	}
}

// writeJSON writes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// methodNotAllowed writes a 405 with the allowed methods.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
