// Package backtest scores predicted win rates against market odds and
// simulates betting policies over an evaluation table.
package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/keiba-value/internal/models"
)

// Score attaches predictions to rows, normalises them within each race and
// derives expected value as normalised win rate times win odds. Rows keep
// their input order. A race whose predictions sum to zero gets a normalised
// win rate of zero on every row.
func Score(rows []models.FeatureRow, probs []float64) ([]models.ScoredRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to score rows: %w", models.ErrEmptyResult)
	}
	if len(rows) != len(probs) {
		return nil, fmt.Errorf("%w: %d rows, %d predictions", ErrLengthMismatch, len(rows), len(probs))
	}

	raceSums := make(map[string]float64)
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: row %d has %v", ErrInvalidProbability, i, p)
		}
		raceSums[rows[i].RaceID] += p
	}

	scored := make([]models.ScoredRow, len(rows))
	for i, row := range rows {
		normalized := 0.0
		if sum := raceSums[row.RaceID]; sum > 0 {
			normalized = probs[i] / sum
		}
		scored[i] = models.ScoredRow{
			FeatureRow:        row,
			PredictedWinRate:  probs[i],
			NormalizedWinRate: normalized,
			ExpectedValue:     normalized * row.WinOdds,
		}
	}
	return scored, nil
}

// groupByRace splits scored rows into races ordered by race ID. Rows within a
// race keep their input order.
func groupByRace(rows []models.ScoredRow) [][]models.ScoredRow {
	byRace := make(map[string][]models.ScoredRow)
	for _, row := range rows {
		byRace[row.RaceID] = append(byRace[row.RaceID], row)
	}
	ids := make([]string, 0, len(byRace))
	for id := range byRace {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	races := make([][]models.ScoredRow, len(ids))
	for i, id := range ids {
		races[i] = byRace[id]
	}
	return races
}

// TopByExpectedValue returns up to n rows ordered by expected value, highest
// first. Ties fall back to race ID then horse number.
func TopByExpectedValue(rows []models.ScoredRow, n int) []models.ScoredRow {
	sorted := append([]models.ScoredRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExpectedValue != sorted[j].ExpectedValue {
			return sorted[i].ExpectedValue > sorted[j].ExpectedValue
		}
		if sorted[i].RaceID != sorted[j].RaceID {
			return sorted[i].RaceID < sorted[j].RaceID
		}
		return sorted[i].HorseNumber < sorted[j].HorseNumber
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
