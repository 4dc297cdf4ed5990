package backtest

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/keiba-value/internal/models"
)

// Policy names
const (
	PolicyFlat         = "flat"
	PolicyProportional = "proportional"
)

// DefaultTopN is the number of highest-EV bets reported when none is configured
const DefaultTopN = 5

var hundred = decimal.NewFromInt(100)

// Policy simulates a betting rule over a scored evaluation table
type Policy interface {
	Name() string
	Simulate(ctx context.Context, rows []models.ScoredRow) (models.BacktestResult, error)
}

// FlatStakePolicy stakes a fixed amount on every row whose expected value
// exceeds the threshold.
type FlatStakePolicy struct {
	Threshold float64
	UnitStake float64
	TopN      int
}

// Name returns the policy name
func (p FlatStakePolicy) Name() string {
	return PolicyFlat
}

// Simulate runs the flat stake policy
func (p FlatStakePolicy) Simulate(ctx context.Context, rows []models.ScoredRow) (models.BacktestResult, error) {
	if p.UnitStake <= 0 {
		return models.BacktestResult{}, fmt.Errorf("unit stake must be positive, got %v", p.UnitStake)
	}
	stake := decimal.NewFromFloat(p.UnitStake)
	settle := func(race []models.ScoredRow) []bet {
		var bets []bet
		for _, row := range qualifying(race, p.Threshold) {
			bets = append(bets, placeBet(row, stake))
		}
		return bets
	}
	result, err := simulate(ctx, rows, settle, 1, p.TopN)
	if err != nil {
		return models.BacktestResult{}, err
	}
	result.Policy = p.Name()
	result.Threshold = p.Threshold
	result.Stake = p.UnitStake
	return result, nil
}

// ProportionalPolicy spreads a fixed budget per race across the qualifying
// rows in proportion to their normalised win rate. Races with no qualifier
// are skipped. When the qualifiers' normalised win rates sum to zero the
// budget is split evenly.
type ProportionalPolicy struct {
	Threshold  float64
	RaceBudget float64
	Workers    int
	TopN       int
}

// Name returns the policy name
func (p ProportionalPolicy) Name() string {
	return PolicyProportional
}

// Simulate runs the proportional policy. Races are settled concurrently
// across Workers goroutines.
func (p ProportionalPolicy) Simulate(ctx context.Context, rows []models.ScoredRow) (models.BacktestResult, error) {
	if p.RaceBudget <= 0 {
		return models.BacktestResult{}, fmt.Errorf("race budget must be positive, got %v", p.RaceBudget)
	}
	budget := decimal.NewFromFloat(p.RaceBudget)
	settle := func(race []models.ScoredRow) []bet {
		qualifiers := qualifying(race, p.Threshold)
		if len(qualifiers) == 0 {
			return nil
		}

		weightSum := decimal.Zero
		for _, row := range qualifiers {
			weightSum = weightSum.Add(decimal.NewFromFloat(row.NormalizedWinRate))
		}

		bets := make([]bet, 0, len(qualifiers))
		for _, row := range qualifiers {
			var stake decimal.Decimal
			if weightSum.IsZero() {
				stake = budget.Div(decimal.NewFromInt(int64(len(qualifiers))))
			} else {
				stake = budget.Mul(decimal.NewFromFloat(row.NormalizedWinRate)).Div(weightSum)
			}
			bets = append(bets, placeBet(row, stake))
		}
		return bets
	}
	result, err := simulate(ctx, rows, settle, p.Workers, p.TopN)
	if err != nil {
		return models.BacktestResult{}, err
	}
	result.Policy = p.Name()
	result.Threshold = p.Threshold
	result.Stake = p.RaceBudget
	return result, nil
}

type bet struct {
	row    models.ScoredRow
	stake  decimal.Decimal
	payout decimal.Decimal
}

func placeBet(row models.ScoredRow, stake decimal.Decimal) bet {
	payout := decimal.Zero
	if row.IsWinner == 1 {
		payout = stake.Mul(decimal.NewFromFloat(row.WinOdds))
	}
	return bet{row: row, stake: stake, payout: payout}
}

// qualifying returns the rows whose expected value strictly exceeds threshold
func qualifying(race []models.ScoredRow, threshold float64) []models.ScoredRow {
	var out []models.ScoredRow
	for _, row := range race {
		if row.ExpectedValue > threshold {
			out = append(out, row)
		}
	}
	return out
}

// simulate settles every race and reduces the per-race ledgers into one
// result. Each worker owns a disjoint stride of races.
func simulate(ctx context.Context, rows []models.ScoredRow, settle func([]models.ScoredRow) []bet, workers, topN int) (models.BacktestResult, error) {
	if len(rows) == 0 {
		return models.BacktestResult{}, fmt.Errorf("failed to simulate: %w", models.ErrEmptyResult)
	}

	races := groupByRace(rows)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(races) {
		workers = len(races)
	}

	settled := make([][]bet, len(races))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(races); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				settled[i] = settle(races[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.BacktestResult{}, fmt.Errorf("simulation interrupted: %w", err)
	}

	if topN <= 0 {
		topN = DefaultTopN
	}

	result := models.BacktestResult{
		TotalRaces: len(races),
		Races:      make([]models.RaceSettlement, 0, len(races)),
	}
	totalInvestment, totalReturn := decimal.Zero, decimal.Zero
	var placed []models.ScoredRow
	for i, race := range races {
		investment, ret := decimal.Zero, decimal.Zero
		settlement := models.RaceSettlement{RaceID: race[0].RaceID}
		for _, b := range settled[i] {
			investment = investment.Add(b.stake)
			ret = ret.Add(b.payout)
			settlement.Bets++
			if b.row.IsWinner == 1 {
				settlement.Hits++
			}
			placed = append(placed, b.row)
		}
		settlement.Investment = investment.InexactFloat64()
		settlement.Return = ret.InexactFloat64()
		result.Races = append(result.Races, settlement)

		if settlement.Bets > 0 {
			result.BetRaces++
		}
		result.NumBets += settlement.Bets
		result.Hits += settlement.Hits
		totalInvestment = totalInvestment.Add(investment)
		totalReturn = totalReturn.Add(ret)
	}

	result.TotalInvestment = totalInvestment.InexactFloat64()
	result.TotalReturn = totalReturn.InexactFloat64()
	result.ROI = roi(totalInvestment, totalReturn)
	result.TopBets = TopByExpectedValue(placed, topN)
	return result, nil
}

// roi is return over investment as a percentage, or 0 when nothing was staked
func roi(investment, ret decimal.Decimal) float64 {
	if investment.IsZero() {
		return 0
	}
	return ret.Div(investment).Mul(hundred).InexactFloat64()
}
