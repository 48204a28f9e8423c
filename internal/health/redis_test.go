package health

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	err error
}

func (f fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func TestRedisChecker_HealthCheck(t *testing.T) {
	errDown := errors.New("dial tcp: connection refused")

	if err := NewRedisChecker(fakeRedis{}).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	err := NewRedisChecker(fakeRedis{err: errDown}).HealthCheck(context.Background())
	if !errors.Is(err, errDown) {
		t.Errorf("HealthCheck() error = %v, want wrapped %v", err, errDown)
	}
}

func TestRedisChecker_RealClientUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1", MaxRetries: -1})
	defer client.Close()

	if err := NewRedisChecker(client).HealthCheck(context.Background()); err == nil {
		t.Error("expected an error for an unreachable server")
	}
}
