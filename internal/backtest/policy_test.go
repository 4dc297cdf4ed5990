package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-value/internal/models"
)

func scoredRow(raceID string, horse int, normalized, odds float64, winner bool) models.ScoredRow {
	return models.ScoredRow{
		FeatureRow:        featureRow(raceID, horse, odds, winner),
		PredictedWinRate:  normalized,
		NormalizedWinRate: normalized,
		ExpectedValue:     normalized * odds,
	}
}

func TestFlatStakePolicyExample(t *testing.T) {
	rows := []models.ScoredRow{
		scoredRow("r1", 1, 0.75, 2.0, false), // EV 1.5
		scoredRow("r1", 2, 0.25, 2.0, true),  // EV 0.5
		scoredRow("r2", 1, 0.3, 3.0, false),  // EV 0.9
		scoredRow("r2", 2, 0.7, 3.0, true),
	}
	rows[3].ExpectedValue = 2.0

	policy := FlatStakePolicy{Threshold: 1.0, UnitStake: 100}
	result, err := policy.Simulate(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, PolicyFlat, result.Policy)
	assert.Equal(t, 2, result.TotalRaces)
	assert.Equal(t, 2, result.BetRaces)
	assert.Equal(t, 2, result.NumBets)
	assert.Equal(t, 1, result.Hits)
	assert.Equal(t, 200.0, result.TotalInvestment)
	assert.Equal(t, 300.0, result.TotalReturn)
	assert.Equal(t, 150.0, result.ROI)
	require.Len(t, result.TopBets, 2)
	assert.Equal(t, 2.0, result.TopBets[0].ExpectedValue)
	assert.Equal(t, 1.5, result.TopBets[1].ExpectedValue)
}

func TestProportionalPolicyExample(t *testing.T) {
	rows := []models.ScoredRow{
		scoredRow("r1", 1, 0.6, 2.5, false), // EV 1.5
		scoredRow("r1", 2, 0.4, 5.0, true),  // EV 2.0
		scoredRow("r2", 1, 0.5, 1.5, true),  // EV 0.75
		scoredRow("r2", 2, 0.5, 1.8, false), // EV 0.9
	}

	policy := ProportionalPolicy{Threshold: 1.0, RaceBudget: 100}
	result, err := policy.Simulate(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, PolicyProportional, result.Policy)
	assert.Equal(t, 2, result.TotalRaces)
	assert.Equal(t, 1, result.BetRaces)
	assert.Equal(t, 2, result.NumBets)
	assert.Equal(t, 100.0, result.TotalInvestment)
	assert.Equal(t, 200.0, result.TotalReturn)
	assert.Equal(t, 200.0, result.ROI)

	require.Len(t, result.Races, 2)
	assert.Equal(t, models.RaceSettlement{RaceID: "r1", Bets: 2, Hits: 1, Investment: 100, Return: 200}, result.Races[0])
	assert.Equal(t, models.RaceSettlement{RaceID: "r2"}, result.Races[1])
}

func TestProportionalPolicyStakes(t *testing.T) {
	rows := []models.ScoredRow{
		scoredRow("r1", 1, 0.6, 2.5, true),
		scoredRow("r1", 2, 0.4, 5.0, false),
	}

	result, err := ProportionalPolicy{Threshold: 1.0, RaceBudget: 100}.Simulate(context.Background(), rows)
	require.NoError(t, err)

	// 60 staked on the winner at 2.5
	assert.Equal(t, 150.0, result.TotalReturn)
	assert.Equal(t, 100.0, result.TotalInvestment)
}

func TestProportionalPolicyZeroWeightSplitsEvenly(t *testing.T) {
	rows := []models.ScoredRow{
		{FeatureRow: featureRow("r1", 1, 4.0, true), ExpectedValue: 1.0},
		{FeatureRow: featureRow("r1", 2, 4.0, false), ExpectedValue: 1.0},
	}

	result, err := ProportionalPolicy{Threshold: 0.5, RaceBudget: 100}.Simulate(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.TotalInvestment)
	assert.Equal(t, 200.0, result.TotalReturn)
}

func TestPoliciesNoQualifiers(t *testing.T) {
	rows := []models.ScoredRow{
		scoredRow("r1", 1, 0.5, 1.5, true),
		scoredRow("r1", 2, 0.5, 1.9, false),
	}

	policies := []Policy{
		FlatStakePolicy{Threshold: 1.0, UnitStake: 100},
		ProportionalPolicy{Threshold: 1.0, RaceBudget: 100},
	}
	for _, policy := range policies {
		t.Run(policy.Name(), func(t *testing.T) {
			result, err := policy.Simulate(context.Background(), rows)
			require.NoError(t, err)
			assert.False(t, result.HasBets())
			assert.Equal(t, 1, result.TotalRaces)
			assert.Equal(t, 0, result.BetRaces)
			assert.Equal(t, 0.0, result.TotalInvestment)
			assert.Equal(t, 0.0, result.ROI)
			assert.Empty(t, result.TopBets)
		})
	}
}

func TestPoliciesThresholdIsStrict(t *testing.T) {
	rows := []models.ScoredRow{scoredRow("r1", 1, 0.5, 2.0, true)}

	result, err := FlatStakePolicy{Threshold: 1.0, UnitStake: 100}.Simulate(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NumBets)
}

func TestPoliciesEmptyTable(t *testing.T) {
	_, err := FlatStakePolicy{Threshold: 1.0, UnitStake: 100}.Simulate(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrEmptyResult)

	_, err = ProportionalPolicy{Threshold: 1.0, RaceBudget: 100}.Simulate(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrEmptyResult)
}

func TestPoliciesRejectNonPositiveStake(t *testing.T) {
	rows := []models.ScoredRow{scoredRow("r1", 1, 0.5, 4.0, true)}

	_, err := FlatStakePolicy{Threshold: 1.0}.Simulate(context.Background(), rows)
	assert.Error(t, err)

	_, err = ProportionalPolicy{Threshold: 1.0, RaceBudget: -1}.Simulate(context.Background(), rows)
	assert.Error(t, err)
}

func TestProportionalPolicyWorkersAgree(t *testing.T) {
	rows := randomScoredTable(200, 11)

	sequential, err := ProportionalPolicy{Threshold: 1.1, RaceBudget: 100, Workers: 1}.Simulate(context.Background(), rows)
	require.NoError(t, err)
	parallel, err := ProportionalPolicy{Threshold: 1.1, RaceBudget: 100, Workers: 8}.Simulate(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
	assert.Equal(t, 200, sequential.TotalRaces)
	assert.True(t, sequential.HasBets())
}

func TestProportionalPolicyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProportionalPolicy{Threshold: 1.0, RaceBudget: 100, Workers: 2}.Simulate(ctx, randomScoredTable(10, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopBetsDefault(t *testing.T) {
	rows := randomScoredTable(50, 5)

	result, err := FlatStakePolicy{Threshold: 0, UnitStake: 10}.Simulate(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, result.TopBets, DefaultTopN)
	for i := 1; i < len(result.TopBets); i++ {
		assert.GreaterOrEqual(t, result.TopBets[i-1].ExpectedValue, result.TopBets[i].ExpectedValue)
	}
}

// randomScoredTable builds races of 8 runners with normalised rates and one winner each
func randomScoredTable(races int, seed int64) []models.ScoredRow {
	rng := rand.New(rand.NewSource(seed))
	var features []models.FeatureRow
	var probs []float64
	for r := 0; r < races; r++ {
		winner := 1 + rng.Intn(8)
		for horse := 1; horse <= 8; horse++ {
			features = append(features, featureRow(fmt.Sprintf("race-%03d", r), horse, 1.5+rng.Float64()*20, horse == winner))
			probs = append(probs, rng.Float64())
		}
	}
	scored, err := Score(features, probs)
	if err != nil {
		panic(err)
	}
	return scored
}
