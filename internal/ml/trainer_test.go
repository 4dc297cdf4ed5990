package ml

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/keiba-value/internal/config"
	"github.com/yourusername/keiba-value/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// separableRows builds races where the favourite always wins
func separableRows(races int) []models.FeatureRow {
	var rows []models.FeatureRow
	for r := 0; r < races; r++ {
		for h := 1; h <= 5; h++ {
			winner := 0
			if h == 1 {
				winner = 1
			}
			rows = append(rows, models.FeatureRow{
				RaceID:            fmt.Sprintf("r%03d", r),
				HorseNumber:       h,
				Popularity:        float64(h),
				JockeyWinRate:     0.1,
				Age:               models.Some(float64(3 + h%3)),
				WeightCarried:     models.Some(55),
				HorseWeightVal:    models.Some(470),
				HorseWeightChange: models.Some(0),
				WinOdds:           float64(h) * 2,
				IsWinner:          winner,
			})
		}
	}
	return rows
}

func testTrainerConfig() TrainerConfig {
	return TrainerConfig{
		LearningRate:    0.5,
		Epochs:          300,
		ValidationSplit: 0.2,
		Seed:            42,
		ClassBalanced:   true,
	}
}

func TestTrainerLearnsSeparableData(t *testing.T) {
	columns := []string{models.ColPopularity, models.ColAge}
	trainer := NewTrainer(testTrainerConfig(), quietLogger())

	model, report, err := trainer.Train(context.Background(), separableRows(50), columns)
	require.NoError(t, err)
	require.NoError(t, model.Validate())

	assert.Equal(t, columns, model.Columns)
	assert.NotEmpty(t, model.Version)
	assert.Same(t, report, model.Report)
	assert.Equal(t, 200, report.TrainSamples)
	assert.Equal(t, 50, report.ValidationSamples)
	assert.Equal(t, 10, report.Positives)
	assert.GreaterOrEqual(t, report.Accuracy, 0.95)
	assert.Equal(t, 10, report.Confusion.TruePositive)
	assert.Less(t, model.Weights[0], 0.0, "lower popularity rank raises win probability")

	c := report.Confusion
	assert.Equal(t, report.ValidationSamples, c.TruePositive+c.FalsePositive+c.TrueNegative+c.FalseNegative)
}

func TestTrainerDeterministic(t *testing.T) {
	columns := []string{models.ColPopularity, models.ColJockeyWinRate}
	rows := separableRows(20)

	a, _, err := NewTrainer(testTrainerConfig(), quietLogger()).Train(context.Background(), rows, columns)
	require.NoError(t, err)
	b, _, err := NewTrainer(testTrainerConfig(), quietLogger()).Train(context.Background(), rows, columns)
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, 1.0, a.Scales[1], "constant column keeps unit scale")
}

func TestTrainerErrors(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), quietLogger())

	_, _, err := trainer.Train(context.Background(), nil, []string{models.ColPopularity})
	assert.True(t, errors.Is(err, models.ErrEmptyResult))

	_, _, err = trainer.Train(context.Background(), []models.FeatureRow{{}}, []string{models.ColAge})
	assert.Error(t, err, "unimputed rows are rejected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = trainer.Train(ctx, separableRows(2), []string{models.ColPopularity})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStratifiedSplit(t *testing.T) {
	y := []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0}

	train, val := stratifiedSplit(y, 0.5, 1)
	assert.Len(t, train, 5)
	assert.Len(t, val, 5)

	positives := 0
	for _, i := range val {
		positives += int(y[i])
	}
	assert.Equal(t, 1, positives)

	train, val = stratifiedSplit(y, 0, 1)
	assert.Len(t, train, 10)
	assert.Empty(t, val)
}

func TestSampleWeights(t *testing.T) {
	y := []float64{1, 0, 0, 0}

	assert.Equal(t, []float64{1, 1, 1, 1}, sampleWeights(y, false))
	assert.Equal(t, []float64{2, 4.0 / 6, 4.0 / 6, 4.0 / 6}, sampleWeights(y, true))
	assert.Equal(t, []float64{1, 1}, sampleWeights([]float64{0, 0}, true))
}

func TestTrainerConfigFrom(t *testing.T) {
	cfg := TrainerConfigFrom(config.ModelConfig{LearningRate: 0.2, Epochs: 10, Seed: 7, ClassBalanced: true})
	assert.Equal(t, 0.2, cfg.LearningRate)
	assert.Equal(t, 10, cfg.Epochs)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.True(t, cfg.ClassBalanced)
}
