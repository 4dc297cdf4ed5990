package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/keiba-value/internal/models"
)

// LogisticModel is a standardised logistic regression over named feature columns.
// Missing inputs are scored at the training mean.
type LogisticModel struct {
	Version   string          `json:"version"`
	Columns   []string        `json:"columns"`
	Means     []float64       `json:"means"`
	Scales    []float64       `json:"scales"`
	Weights   []float64       `json:"weights"`
	Bias      float64         `json:"bias"`
	TrainedAt time.Time       `json:"trained_at"`
	Report    *TrainingReport `json:"report,omitempty"`
}

// Validate checks the model's dimensions
func (m *LogisticModel) Validate() error {
	n := len(m.Columns)
	if n == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidModel)
	}
	if len(m.Means) != n || len(m.Scales) != n || len(m.Weights) != n {
		return fmt.Errorf("%w: %d columns, %d means, %d scales, %d weights",
			ErrInvalidModel, n, len(m.Means), len(m.Scales), len(m.Weights))
	}
	for i, s := range m.Scales {
		if s <= 0 || math.IsNaN(s) {
			return fmt.Errorf("%w: non-positive scale for %s", ErrInvalidModel, m.Columns[i])
		}
	}
	return nil
}

// ModelVersion returns the artifact version
func (m *LogisticModel) ModelVersion() string {
	return m.Version
}

// Predict scores every row
func (m *LogisticModel) Predict(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	probs := make([]float64, len(rows))
	for i, row := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw, err := m.rawVector(row)
		if err != nil {
			return nil, err
		}
		probs[i] = m.score(raw)
	}

	MLPredictionsTotal.WithLabelValues("local", "false").Add(float64(len(rows)))
	MLPredictionLatency.WithLabelValues("local").Observe(time.Since(start).Seconds())
	return probs, nil
}

func (m *LogisticModel) rawVector(row models.FeatureRow) ([]float64, error) {
	raw := make([]float64, len(m.Columns))
	for j, column := range m.Columns {
		v, err := row.Feature(column)
		if err != nil {
			return nil, err
		}
		if v.Valid {
			raw[j] = v.Value
		} else {
			raw[j] = m.Means[j]
		}
	}
	return raw, nil
}

func (m *LogisticModel) standardise(raw []float64) []float64 {
	x := make([]float64, len(raw))
	for j, v := range raw {
		x[j] = (v - m.Means[j]) / m.Scales[j]
	}
	return x
}

func (m *LogisticModel) score(raw []float64) float64 {
	return sigmoid(floats.Dot(m.Weights, m.standardise(raw)) + m.Bias)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
