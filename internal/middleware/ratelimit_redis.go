package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces rate limit counters in Redis.
const RedisKeyPrefix = "ratewings:ratelimit:"

// fixedWindowScript increments the counter, starts the window on the first hit
// and returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisRateLimitStore is a fixed window RateLimitStore shared across API instances.
// Redis failures let the request through (fail open) with a full quota reported.
type RedisRateLimitStore struct {
	client  redis.Scripter
	metrics *Metrics
	logger  *slog.Logger
}

// RedisOption configures a RedisRateLimitStore.
type RedisOption func(*RedisRateLimitStore)

// WithRedisMetrics counts fail-open events.
func WithRedisMetrics(m *Metrics) RedisOption {
	return func(s *RedisRateLimitStore) { s.metrics = m }
}

// WithRedisLogger sets the logger used for fail-open warnings.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(s *RedisRateLimitStore) { s.logger = l }
}

// NewRedisRateLimitStore creates a store backed by client.
func NewRedisRateLimitStore(client redis.Scripter, opts ...RedisOption) *RedisRateLimitStore {
	s := &RedisRateLimitStore{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{RedisKeyPrefix + key}, config.WindowDuration.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		s.metrics.IncRateLimitStoreErrors()
		if err != nil {
			s.logger.WarnContext(ctx, "rate limit store unavailable, allowing request",
				slog.String("error", err.Error()))
		}
		return true, config.RequestsPerWindow, 0
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}
	return false, 0, retrySeconds(ttl)
}
