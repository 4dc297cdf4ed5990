package database

import (
	"context"
	"testing"
	"time"

	"github.com/yourusername/keiba-value/internal/config"
)

// SetupTestDB connects to the database described by config/config.test.yaml
// and KEIBA_DATABASE_* overrides. The test is skipped unless the database is
// enabled there.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	cfg, err := config.LoadWithDefaults("../../config/config.test.yaml")
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	if !cfg.Database.Enabled {
		t.Skip("database not enabled; set KEIBA_DATABASE_ENABLED=true to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Initialize(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	return db
}

// TeardownTestDB truncates the run history and closes the pool
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.Exec(ctx, "TRUNCATE backtest_runs"); err != nil {
		t.Logf("warning: failed to truncate test table: %v", err)
	}
	db.Close()
}
