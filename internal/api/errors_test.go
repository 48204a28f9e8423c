package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/middleware"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response body: %v, body: %s", err, w.Body.String())
	}
	return resp
}

func TestWriteError_BasicFields(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Location not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", ct)
	}
	resp := decodeError(t, w)
	if resp.Error.Code != ErrCodeNotFound || resp.Error.Message != "Location not found" {
		t.Errorf("unexpected error body %+v", resp.Error)
	}
}

func TestErrorResponse_JSONStructure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusBadRequest, ErrCodeValidation, `bad "lat" <value> & more`)

	var raw map[string]map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(raw) != 1 || len(raw["error"]) != 2 {
		t.Fatalf("unexpected envelope shape: %s", w.Body.String())
	}
	if raw["error"]["message"] != `bad "lat" <value> & more` {
		t.Errorf("message not preserved: %q", raw["error"]["message"])
	}
}

func TestWriteError_LoggedWithRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := middleware.RequestID(middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid token")
	})))

	req := httptest.NewRequest(http.MethodPost, "/locations/merge", nil)
	req.Header.Set(middleware.RequestIDHeader, "test-req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		RequestID string `json:"request_id"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	if entry.RequestID != "test-req-123" {
		t.Errorf("expected request_id test-req-123, got %s", entry.RequestID)
	}
	if entry.ErrorCode != ErrCodeAuthFailed {
		t.Errorf("expected error_code %s, got %s", ErrCodeAuthFailed, entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("expected WARN for 4xx, got %s", entry.Level)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.wantStatus {
				t.Errorf("StatusCodeMapping(%s) = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"location not found", location.ErrLocationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"wrapped review not found", fmt.Errorf("load: %w", location.ErrReviewNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"self merge", location.ErrSameLocation, http.StatusBadRequest, ErrCodeValidation},
		{"empty name", location.ErrEmptyName, http.StatusBadRequest, ErrCodeValidation},
		{"heat range", location.ErrHeatRange, http.StatusBadRequest, ErrCodeValidation},
		{"partial point", geo.ErrPartialPoint, http.StatusBadRequest, ErrCodeValidation},
		{"latitude", geo.ErrLatitudeRange, http.StatusBadRequest, ErrCodeValidation},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeDomainError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp := decodeError(t, w); resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteDomainError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error leaked to client: %s", w.Body.String())
	}
}
