package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitedCode is the error code written with 429 responses.
const RateLimitedCode = "rate_limited"

// RateLimitConfig defines a fixed window limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window. Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the window length. Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that both fields are positive.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultLimit returns the global limit applied to every route (120 requests per minute).
func DefaultLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 120, WindowDuration: time.Minute}
}

// RateLimitStore holds rate limit counters.
type RateLimitStore interface {
	// Allow records one request for key. remaining is the number of requests
	// left in the current window; retryAfter is the number of seconds until the
	// window resets and is only meaningful when allowed is false.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore is a fixed window RateLimitStore for a single process.
// Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	b, exists := s.buckets[key]
	if !exists || !now.Before(b.windowEnd) {
		s.buckets[key] = &bucket{count: 1, windowEnd: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	return false, 0, retrySeconds(b.windowEnd.Sub(now))
}

// Cleanup removes expired buckets. Call it periodically, every few windows.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if !now.Before(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *InMemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// retrySeconds rounds d up to whole seconds, minimum 1.
func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs <= 0 {
		return 1
	}
	return secs
}

// KeyFunc extracts a rate limit key from an HTTP request.
// Keys have the form "<type>:<value>"; the type is used as a metric label.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP ("ip:<addr>").
// X-Forwarded-For (first hop) and X-Real-IP take precedence over RemoteAddr.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		return "ip:" + clientIP(r)
	}
}

// AdminKeyFunc keys authenticated admin requests by token subject and
// everything else by client IP.
func AdminKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if sub := GetAdminSubject(r.Context()); sub != "" {
			return "admin:" + sub
		}
		return "ip:" + clientIP(r)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func keyType(key string) string {
	if t, _, ok := strings.Cut(key, ":"); ok {
		return t
	}
	return "unknown"
}

// RateLimiter rejects requests over the limit with 429 and a JSON error body.
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining; blocked
// responses add Retry-After and X-RateLimit-Reset (Unix seconds).
// metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			endpoint := normalizePath(r.URL.Path)
			kt := keyType(key)
			metrics.IncRateLimitRequests(endpoint, kt)

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.IncRateLimitBlocked(endpoint, kt)

			ctx := SetErrorCode(r.Context(), RateLimitedCode)
			UpdateResponseContext(w, ctx)

			h.Set("Retry-After", strconv.Itoa(retryAfter))
			reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]map[string]string{
				"error": {
					"code":    RateLimitedCode,
					"message": "Too many requests, retry in " + strconv.Itoa(retryAfter) + "s",
				},
			})
		})
	}
}
