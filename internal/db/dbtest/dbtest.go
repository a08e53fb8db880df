// Package dbtest connects repository tests to a real PostgreSQL database
// described by DB_*_TEST variables.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/config"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Config reports false when DB_HOST_TEST is unset.
func Config() (config.PostgresConfig, bool) {
	cfg := config.PostgresConfig{
		Host:            os.Getenv("DB_HOST_TEST"),
		Port:            envOr("DB_PORT_TEST", "5432"),
		User:            envOr("DB_USER_TEST", "postgres"),
		Password:        os.Getenv("DB_PASSWORD_TEST"),
		DBName:          envOr("DB_NAME_TEST", "marketplace_test"),
		SSLMode:         envOr("DB_SSLMODE_TEST", "disable"),
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MigrationsPath:  migrationsPath(),
	}
	return cfg, cfg.Host != ""
}

// Open migrates and connects. It returns (nil, nil) when no test database is configured.
func Open(ctx context.Context) (*db.Postgres, error) {
	cfg, ok := Config()
	if !ok {
		return nil, nil
	}
	if err := db.ApplyMigrations(cfg); err != nil {
		return nil, err
	}
	return db.New(ctx, cfg)
}

// Reset skips the test when pg is nil, otherwise empties every table before
// and after the test.
func Reset(t *testing.T, pg *db.Postgres) *db.Postgres {
	t.Helper()
	if pg == nil {
		t.Skip("DB_HOST_TEST not set; skipping PostgreSQL test")
	}

	truncate(t, pg)
	t.Cleanup(func() { truncate(t, pg) })
	return pg
}

func truncate(t *testing.T, pg *db.Postgres) {
	t.Helper()
	_, err := pg.Pool.Exec(context.Background(),
		"TRUNCATE TABLE outbox, order_items, orders, cart_items, products, users RESTART IDENTITY CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}
