package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/keiba-value/internal/database"
	"github.com/yourusername/keiba-value/internal/models"
)

const (
	selectBacktestRuns = `
		SELECT id, run_date, policy, threshold, stake, model_version, total_races, bet_races,
			num_bets, total_investment, total_return, roi, full_results, created_at
		FROM backtest_runs`
	errScanBacktestRun = "failed to scan backtest run: %w"
)

// PostgresBacktestRunRepository implements BacktestRunRepository for PostgreSQL
type PostgresBacktestRunRepository struct {
	db *database.DB
}

// NewPostgresBacktestRunRepository creates a new backtest run repository
func NewPostgresBacktestRunRepository(db *database.DB) BacktestRunRepository {
	return &PostgresBacktestRunRepository{db: db}
}

// Create inserts a backtest run
func (r *PostgresBacktestRunRepository) Create(ctx context.Context, run *models.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (
			id, run_date, policy, threshold, stake, model_version, total_races, bet_races,
			num_bets, total_investment, total_return, roi, full_results, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.RunDate, run.Policy, run.Threshold, run.Stake, run.ModelVersion, run.TotalRaces, run.BetRaces,
		run.NumBets, run.TotalInvestment, run.TotalReturn, run.ROI, []byte(run.FullResults), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a backtest run by ID
func (r *PostgresBacktestRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	run, err := scanBacktestRun(r.db.QueryRow(ctx, selectBacktestRuns+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanBacktestRun, err)
	}
	return run, nil
}

// GetLatest retrieves the most recent backtest runs
func (r *PostgresBacktestRunRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error) {
	rows, err := r.db.Query(ctx, selectBacktestRuns+" ORDER BY run_date DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	return collectBacktestRuns(rows)
}

// GetByPolicy retrieves the most recent backtest runs for a policy
func (r *PostgresBacktestRunRepository) GetByPolicy(ctx context.Context, policy string, limit int) ([]*models.BacktestRun, error) {
	rows, err := r.db.Query(ctx, selectBacktestRuns+" WHERE policy = $1 ORDER BY run_date DESC LIMIT $2", policy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs by policy: %w", err)
	}
	return collectBacktestRuns(rows)
}

func collectBacktestRuns(rows pgx.Rows) ([]*models.BacktestRun, error) {
	defer rows.Close()

	var runs []*models.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanBacktestRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanBacktestRun(row pgx.Row) (*models.BacktestRun, error) {
	run := &models.BacktestRun{}
	var full []byte
	if err := row.Scan(
		&run.ID, &run.RunDate, &run.Policy, &run.Threshold, &run.Stake, &run.ModelVersion, &run.TotalRaces, &run.BetRaces,
		&run.NumBets, &run.TotalInvestment, &run.TotalReturn, &run.ROI, &full, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.FullResults = full
	return run, nil
}
