// Package ml provides win probability predictors: a local logistic model,
// a remote scoring service client and a caching decorator.
package ml

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/keiba-value/internal/models"
)

// Predictor returns one win probability in [0, 1] per row, in input order
type Predictor interface {
	Predict(ctx context.Context, rows []models.FeatureRow) ([]float64, error)
}

// PredictorFunc adapts a function to the Predictor interface
type PredictorFunc func(ctx context.Context, rows []models.FeatureRow) ([]float64, error)

// Predict calls f
func (f PredictorFunc) Predict(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	return f(ctx, rows)
}

// ValidatePredictions checks that probs holds n finite probabilities
func ValidatePredictions(n int, probs []float64) error {
	if len(probs) != n {
		return fmt.Errorf("%w: got %d probabilities for %d rows", ErrInvalidPrediction, len(probs), n)
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: probability %v at row %d", ErrInvalidPrediction, p, i)
		}
	}
	return nil
}
