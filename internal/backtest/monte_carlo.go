package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/yourusername/keiba-value/internal/models"
)

// DefaultBootstrapIterations is used when a run asks for resampling without a count
const DefaultBootstrapIterations = 1000

// BootstrapConfig configures race-level resampling of a backtest ledger
type BootstrapConfig struct {
	Iterations      int
	ConfidenceLevel float64
	// Seed of zero draws a time-based seed
	Seed int64
}

// BootstrapResult summarises the ROI distribution over resampled seasons
type BootstrapResult struct {
	Iterations          int       `json:"iterations"`
	Seed                int64     `json:"seed"`
	ConfidenceLevel     float64   `json:"confidence_level"`
	MeanROI             float64   `json:"mean_roi"`
	StdROI              float64   `json:"std_roi"`
	LowerROI            float64   `json:"lower_roi"`
	UpperROI            float64   `json:"upper_roi"`
	ProbabilityOfProfit float64   `json:"probability_of_profit"`
	Distribution        []float64 `json:"-"`
}

// RunBootstrap resamples races with replacement and recomputes ROI for each
// synthetic season. Races without a bet are part of the sample so the
// betting frequency is preserved.
func RunBootstrap(ctx context.Context, races []models.RaceSettlement, cfg BootstrapConfig) (BootstrapResult, error) {
	if len(races) == 0 {
		return BootstrapResult{}, fmt.Errorf("failed to bootstrap: %w", models.ErrEmptyResult)
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultBootstrapIterations
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)
	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return BootstrapResult{}, err
			}
		}
		investment, ret := 0.0, 0.0
		for range races {
			race := races[rng.Intn(len(races))]
			investment += race.Investment
			ret += race.Return
		}
		if investment > 0 {
			distribution[i] = ret / investment * 100
		}
	}

	mean, err := stats.Mean(distribution)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("failed to compute mean ROI: %w", err)
	}
	std, err := stats.StandardDeviationPopulation(distribution)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("failed to compute ROI deviation: %w", err)
	}
	tail := (1 - cfg.ConfidenceLevel) / 2 * 100
	lower, err := stats.Percentile(distribution, tail)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("failed to compute lower bound: %w", err)
	}
	upper, err := stats.Percentile(distribution, 100-tail)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("failed to compute upper bound: %w", err)
	}

	return BootstrapResult{
		Iterations:          cfg.Iterations,
		Seed:                seed,
		ConfidenceLevel:     cfg.ConfidenceLevel,
		MeanROI:             mean,
		StdROI:              std,
		LowerROI:            lower,
		UpperROI:            upper,
		ProbabilityOfProfit: probabilityAbove(distribution, 100),
		Distribution:        distribution,
	}, nil
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}
