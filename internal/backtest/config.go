package backtest

import (
	"fmt"

	"github.com/yourusername/keiba-value/internal/config"
)

// BacktestConfig holds the policy parameters for a simulation run
type BacktestConfig struct {
	Policy              string
	Threshold           float64
	UnitStake           float64
	RaceBudget          float64
	TopN                int
	Workers             int
	OutputPath          string
	ReportFormats       []string
	SweepThresholds     []float64
	BootstrapIterations int
	ConfidenceLevel     float64
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("backtest config is required")
	}

	bt := BacktestConfig{
		Policy:              cfg.Policy,
		Threshold:           cfg.Threshold,
		UnitStake:           cfg.UnitStake,
		RaceBudget:          cfg.RaceBudget,
		TopN:                cfg.TopN,
		Workers:             cfg.Workers,
		OutputPath:          cfg.OutputPath,
		ReportFormats:       cfg.ReportFormats,
		SweepThresholds:     cfg.SweepThresholds,
		BootstrapIterations: cfg.BootstrapIterations,
		ConfidenceLevel:     cfg.ConfidenceLevel,
	}
	if bt.TopN <= 0 {
		bt.TopN = DefaultTopN
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	switch b.Policy {
	case PolicyFlat:
		if b.UnitStake <= 0 {
			return fmt.Errorf("unit stake must be positive")
		}
	case PolicyProportional:
		if b.RaceBudget <= 0 {
			return fmt.Errorf("race budget must be positive")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, b.Policy)
	}
	if b.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	if b.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if b.BootstrapIterations < 0 {
		return fmt.Errorf("bootstrap iterations cannot be negative")
	}
	if b.BootstrapIterations > 0 && (b.ConfidenceLevel <= 0 || b.ConfidenceLevel >= 1) {
		return fmt.Errorf("confidence level must be between 0 and 1")
	}
	return nil
}

// NewPolicy builds the configured policy at the given threshold
func (b BacktestConfig) NewPolicy(threshold float64) Policy {
	if b.Policy == PolicyFlat {
		return FlatStakePolicy{Threshold: threshold, UnitStake: b.UnitStake, TopN: b.TopN}
	}
	return ProportionalPolicy{Threshold: threshold, RaceBudget: b.RaceBudget, Workers: b.Workers, TopN: b.TopN}
}

// Bootstrap returns the resampling settings for this run
func (b BacktestConfig) Bootstrap(seed int64) BootstrapConfig {
	return BootstrapConfig{
		Iterations:      b.BootstrapIterations,
		ConfidenceLevel: b.ConfidenceLevel,
		Seed:            seed,
	}
}
