package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-value/internal/config"
)

// Schema creates the run history table. It is safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id               UUID PRIMARY KEY,
	run_date         TIMESTAMPTZ NOT NULL,
	policy           TEXT NOT NULL,
	threshold        DOUBLE PRECISION NOT NULL,
	stake            DOUBLE PRECISION NOT NULL,
	model_version    TEXT NOT NULL,
	total_races      INTEGER NOT NULL,
	bet_races        INTEGER NOT NULL,
	num_bets         INTEGER NOT NULL,
	total_investment DOUBLE PRECISION NOT NULL,
	total_return     DOUBLE PRECISION NOT NULL,
	roi              DOUBLE PRECISION NOT NULL,
	full_results     JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_run_date ON backtest_runs (run_date DESC);
`

// Initialize connects to the database and ensures the run history schema exists
func Initialize(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	err = db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, Schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database initialised")
	return db, nil
}
