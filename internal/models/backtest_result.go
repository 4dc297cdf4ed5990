package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BacktestResult holds the aggregate counters of one simulation run
type BacktestResult struct {
	Policy          string      `json:"policy"`
	Threshold       float64     `json:"threshold"`
	Stake           float64     `json:"stake"`
	TotalRaces      int         `json:"total_races"`
	BetRaces        int         `json:"bet_races"`
	NumBets         int         `json:"num_bets"`
	Hits            int         `json:"hits"`
	TotalInvestment float64     `json:"total_investment"`
	TotalReturn     float64     `json:"total_return"`
	ROI             float64     `json:"roi"`
	TopBets         []ScoredRow `json:"top_bets"`
	// Races is the per-race ledger in race ID order. It is not serialised.
	Races []RaceSettlement `json:"-"`
}

// RaceSettlement is the outcome of one race under a betting policy
type RaceSettlement struct {
	RaceID     string  `json:"race_id"`
	Bets       int     `json:"bets"`
	Hits       int     `json:"hits"`
	Investment float64 `json:"investment"`
	Return     float64 `json:"return"`
}

// Profit returns the race return minus its investment
func (s RaceSettlement) Profit() float64 {
	return s.Return - s.Investment
}

// HasBets reports whether any stake was placed
func (r BacktestResult) HasBets() bool {
	return r.NumBets > 0
}

// HitRate returns the fraction of bets that won
func (r BacktestResult) HitRate() float64 {
	if r.NumBets == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.NumBets)
}

// Profit returns total return minus total investment
func (r BacktestResult) Profit() float64 {
	return r.TotalReturn - r.TotalInvestment
}

// BacktestRun represents a persisted backtest run
type BacktestRun struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	RunDate         time.Time       `db:"run_date" json:"run_date"`
	Policy          string          `db:"policy" json:"policy"`
	Threshold       float64         `db:"threshold" json:"threshold"`
	Stake           float64         `db:"stake" json:"stake"`
	ModelVersion    string          `db:"model_version" json:"model_version"`
	TotalRaces      int             `db:"total_races" json:"total_races"`
	BetRaces        int             `db:"bet_races" json:"bet_races"`
	NumBets         int             `db:"num_bets" json:"num_bets"`
	TotalInvestment float64         `db:"total_investment" json:"total_investment"`
	TotalReturn     float64         `db:"total_return" json:"total_return"`
	ROI             float64         `db:"roi" json:"roi"`
	FullResults     json.RawMessage `db:"full_results" json:"full_results"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// NewBacktestRun builds a persistable run from a result
func NewBacktestRun(result BacktestResult, modelVersion string) *BacktestRun {
	full, _ := json.Marshal(result)
	now := time.Now().UTC()
	return &BacktestRun{
		ID:              uuid.New(),
		RunDate:         now,
		Policy:          result.Policy,
		Threshold:       result.Threshold,
		Stake:           result.Stake,
		ModelVersion:    modelVersion,
		TotalRaces:      result.TotalRaces,
		BetRaces:        result.BetRaces,
		NumBets:         result.NumBets,
		TotalInvestment: result.TotalInvestment,
		TotalReturn:     result.TotalReturn,
		ROI:             result.ROI,
		FullResults:     full,
		CreatedAt:       now,
	}
}
