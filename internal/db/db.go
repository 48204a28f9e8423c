// Package db provides database connection handling and schema migrations for ratewings.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mampersat/ratewings2025/migrations"
)

// DriverName is the database/sql driver used for PostgreSQL.
const DriverName = "postgres"

// migrationLockID is the advisory lock key held while migrations run.
const migrationLockID = 7_245_310_118

// ErrEmptyURL is returned when Open is called without a connection string.
var ErrEmptyURL = errors.New("database url is empty")

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns conservative pool limits.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open opens and pings a PostgreSQL database.
func Open(ctx context.Context, url string, pool PoolConfig) (*sql.DB, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migration is one up migration read from the embedded files.
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations returns the *.up.sql migrations from fsys in version order.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		out = append(out, Migration{
			Version: strings.TrimSuffix(path.Base(name), ".up.sql"),
			SQL:     string(body),
		})
	}
	return out, nil
}

// Migrate applies every embedded migration that has not been recorded in
// schema_migrations. Each migration runs in its own transaction.
// Returns the versions applied by this call.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	ms, err := LoadMigrations(migrations.FS)
	if err != nil {
		return nil, err
	}
	return apply(ctx, db, ms, logger)
}

func apply(ctx context.Context, db *sql.DB, ms []Migration, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID); err != nil {
			logger.Warn("failed to release migration lock", slog.String("error", err.Error()))
		}
	}()

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make([]string, 0)
	for _, m := range ms {
		done, err := applyOne(ctx, conn, m, logger)
		if err != nil {
			return applied, err
		}
		if done {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

func applyOne(ctx context.Context, conn *sql.Conn, m Migration, logger *slog.Logger) (bool, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin migration %s: %w", m.Version, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Warn("failed to rollback migration",
				slog.String("version", m.Version),
				slog.String("error", err.Error()))
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", m.Version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
	}

	logger.Info("migration applied", slog.String("version", m.Version))
	return true, nil
}
