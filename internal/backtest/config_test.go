package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-value/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.BacktestConfig{
		Policy:          PolicyProportional,
		Threshold:       1.2,
		UnitStake:       100,
		RaceBudget:      1000,
		Workers:         4,
		SweepThresholds: []float64{1.0, 1.5},
		ConfidenceLevel: 0.95,
	}

	bt, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopN, bt.TopN)

	policy := bt.NewPolicy(1.5)
	proportional, ok := policy.(ProportionalPolicy)
	require.True(t, ok)
	assert.Equal(t, ProportionalPolicy{Threshold: 1.5, RaceBudget: 1000, Workers: 4, TopN: DefaultTopN}, proportional)

	bt.Policy = PolicyFlat
	assert.Equal(t, FlatStakePolicy{Threshold: 2, UnitStake: 100, TopN: DefaultTopN}, bt.NewPolicy(2))
}

func TestFromConfigBootstrapAndOutputs(t *testing.T) {
	bt, err := FromConfig(&config.BacktestConfig{
		Policy:              PolicyFlat,
		UnitStake:           100,
		OutputPath:          "output/backtest",
		ReportFormats:       []string{"csv", "xlsx"},
		BootstrapIterations: 200,
		ConfidenceLevel:     0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "output/backtest", bt.OutputPath)
	assert.Equal(t, []string{"csv", "xlsx"}, bt.ReportFormats)
	assert.Equal(t, BootstrapConfig{Iterations: 200, ConfidenceLevel: 0.9, Seed: 11}, bt.Bootstrap(11))
}

func TestFromConfigNil(t *testing.T) {
	_, err := FromConfig(nil)
	assert.Error(t, err)
}

func TestBacktestConfigValidate(t *testing.T) {
	valid := BacktestConfig{Policy: PolicyFlat, Threshold: 1, UnitStake: 100, RaceBudget: 100}

	tests := []struct {
		name    string
		mutate  func(*BacktestConfig)
		wantErr bool
	}{
		{"valid", func(*BacktestConfig) {}, false},
		{"unknown policy", func(c *BacktestConfig) { c.Policy = "kelly" }, true},
		{"flat without stake", func(c *BacktestConfig) { c.UnitStake = 0 }, true},
		{"proportional without budget", func(c *BacktestConfig) { c.Policy = PolicyProportional; c.RaceBudget = 0 }, true},
		{"negative threshold", func(c *BacktestConfig) { c.Threshold = -1 }, true},
		{"negative workers", func(c *BacktestConfig) { c.Workers = -1 }, true},
		{"bootstrap without confidence", func(c *BacktestConfig) { c.BootstrapIterations = 100 }, true},
		{"bootstrap", func(c *BacktestConfig) { c.BootstrapIterations = 100; c.ConfidenceLevel = 0.9 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
