//go:build integration

// Package dbtest starts a migrated PostgreSQL database for integration tests.
//
// When DATABASE_URL is set that database is used directly; otherwise a
// disposable postgres container is started with testcontainers.
//
// Run with: go test -tags=integration -v ./...
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/mampersat/ratewings2025/internal/db"
)

// Image is the postgres image used when no DATABASE_URL is provided.
const Image = "postgres:16-alpine"

// Open returns a migrated database with empty wing tables.
// The test is skipped when neither DATABASE_URL nor a container runtime is available.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	conn, err := db.Open(ctx, dsn, db.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := db.Migrate(ctx, conn, nil); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	Reset(t, conn)
	return conn
}

// Reset empties the wing tables and restarts their id sequences.
func Reset(t *testing.T, conn *sql.DB) {
	t.Helper()
	if _, err := conn.Exec(`TRUNCATE wing_reviews, wing_locations RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("ratewings"),
		postgres.WithUsername("ratewings"),
		postgres.WithPassword("ratewings"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable; set DATABASE_URL to run: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := testcontainers.TerminateContainer(ctr, testcontainers.StopContext(stopCtx)); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to build connection string: %v", err)
	}
	return dsn
}
