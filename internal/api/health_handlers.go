package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mampersat/ratewings2025/internal/middleware"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	checks []namedCheck
}

type namedCheck struct {
	name    string
	checker HealthChecker
}

// HealthHandlersConfig configures the health check handlers.
// Nil checkers are reported as "disabled" and never fail readiness.
type HealthHandlersConfig struct {
	DB    HealthChecker
	Redis HealthChecker
}

// NewHealthHandlers creates the health check handlers.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{checks: []namedCheck{
		{name: "database", checker: config.DB},
		{name: "redis", checker: config.Redis},
	}}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. If the process can answer, it is alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	writeHealth(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Returns 503 when a configured dependency is unreachable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if c.checker == nil {
			checks[c.name] = "disabled"
			continue
		}
		if err := c.checker.HealthCheck(ctx); err != nil {
			checks[c.name] = "error"
			healthy = false
			slog.WarnContext(ctx, "readiness check failed",
				slog.String("check", c.name),
				slog.String("error", err.Error()))
			continue
		}
		checks[c.name] = "ok"
	}

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
		r = r.WithContext(middleware.SetErrorCode(r.Context(), "unavailable"))
		middleware.UpdateResponseContext(w, r.Context())
	}
	writeHealth(w, r, status, resp)
}

func writeHealth(w http.ResponseWriter, r *http.Request, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode health response", "error", err)
	}
}
