// Package health provides readiness checks for the service's dependencies.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPinger is the subset of redis.UniversalClient used for checks.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker checks Redis connectivity.
type RedisChecker struct {
	client  redisPinger
	timeout time.Duration
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client redisPinger) *RedisChecker {
	return &RedisChecker{client: client, timeout: DefaultTimeout}
}

// HealthCheck sends PING within the checker timeout.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
