// Package repository persists backtest run history.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/keiba-value/internal/models"
)

// BacktestRunRepository defines the interface for backtest run history
type BacktestRunRepository interface {
	Create(ctx context.Context, run *models.BacktestRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error)
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error)
	GetByPolicy(ctx context.Context, policy string, limit int) ([]*models.BacktestRun, error)
}
