package health

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single dependency check.
const DefaultTimeout = 2 * time.Second

// Pinger is anything that can report reachability, such as *sql.DB
// or a location store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// DBChecker checks database connectivity.
type DBChecker struct {
	db      Pinger
	timeout time.Duration
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db, timeout: DefaultTimeout}
}

// HealthCheck pings the database within the checker timeout.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
