package backtest

import (
	"context"
	"fmt"

	"github.com/yourusername/keiba-value/internal/models"
)

// PolicyBuilder constructs a policy for a given EV threshold
type PolicyBuilder func(threshold float64) Policy

// SweepResult holds one result per threshold and the best of them
type SweepResult struct {
	Results []models.BacktestResult `json:"results"`
	// Best is nil when no threshold placed a bet
	Best *models.BacktestResult `json:"best,omitempty"`
}

// Sweep runs the policy at each threshold in order. The best run is the one
// with the highest ROI among runs that placed at least one bet; ties keep the
// earlier threshold.
func Sweep(ctx context.Context, rows []models.ScoredRow, thresholds []float64, build PolicyBuilder) (SweepResult, error) {
	if len(thresholds) == 0 {
		return SweepResult{}, ErrNoThresholds
	}

	sweep := SweepResult{Results: make([]models.BacktestResult, 0, len(thresholds))}
	bestIdx := -1
	for _, threshold := range thresholds {
		result, err := build(threshold).Simulate(ctx, rows)
		if err != nil {
			return SweepResult{}, fmt.Errorf("threshold %.2f: %w", threshold, err)
		}
		sweep.Results = append(sweep.Results, result)
		if !result.HasBets() {
			continue
		}
		if bestIdx < 0 || result.ROI > sweep.Results[bestIdx].ROI {
			bestIdx = len(sweep.Results) - 1
		}
	}

	if bestIdx >= 0 {
		best := sweep.Results[bestIdx]
		sweep.Best = &best
	}
	return sweep, nil
}
