package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-value/internal/models"
)

func TestRunBootstrapConstantLedger(t *testing.T) {
	races := []models.RaceSettlement{
		{RaceID: "r1", Bets: 1, Investment: 100, Return: 150},
		{RaceID: "r2", Bets: 1, Investment: 100, Return: 150},
	}

	result, err := RunBootstrap(context.Background(), races, BootstrapConfig{Iterations: 200, ConfidenceLevel: 0.9, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 200, result.Iterations)
	assert.Len(t, result.Distribution, 200)
	assert.InDelta(t, 150.0, result.MeanROI, 1e-9)
	assert.InDelta(t, 0.0, result.StdROI, 1e-9)
	assert.InDelta(t, 150.0, result.LowerROI, 1e-9)
	assert.InDelta(t, 150.0, result.UpperROI, 1e-9)
	assert.Equal(t, 1.0, result.ProbabilityOfProfit)
}

func TestRunBootstrapDeterministic(t *testing.T) {
	races := []models.RaceSettlement{
		{RaceID: "r1", Bets: 1, Hits: 1, Investment: 100, Return: 500},
		{RaceID: "r2", Bets: 2, Investment: 100},
		{RaceID: "r3"},
		{RaceID: "r4", Bets: 1, Investment: 100},
	}
	cfg := BootstrapConfig{Iterations: 500, Seed: 7}

	first, err := RunBootstrap(context.Background(), races, cfg)
	require.NoError(t, err)
	second, err := RunBootstrap(context.Background(), races, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Distribution, second.Distribution)
	assert.Equal(t, 0.95, first.ConfidenceLevel)
	assert.LessOrEqual(t, first.LowerROI, first.MeanROI)
	assert.GreaterOrEqual(t, first.UpperROI, first.MeanROI)
	assert.Greater(t, first.ProbabilityOfProfit, 0.0)
	assert.Less(t, first.ProbabilityOfProfit, 1.0)
}

func TestRunBootstrapDefaults(t *testing.T) {
	races := []models.RaceSettlement{{RaceID: "r1"}}

	result, err := RunBootstrap(context.Background(), races, BootstrapConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBootstrapIterations, result.Iterations)
	assert.NotZero(t, result.Seed)
	assert.Equal(t, 0.0, result.MeanROI)
}

func TestRunBootstrapEmpty(t *testing.T) {
	_, err := RunBootstrap(context.Background(), nil, BootstrapConfig{Seed: 1})
	assert.ErrorIs(t, err, models.ErrEmptyResult)
}
