package backtest

import (
	"bytes"
	"strconv"

	"github.com/yourusername/keiba-value/internal/models"
)

// EquityPoint is the running profit after settling one race
type EquityPoint struct {
	RaceID   string  `json:"race_id"`
	Profit   float64 `json:"profit"`
	Peak     float64 `json:"peak"`
	Drawdown float64 `json:"drawdown"`
	RacePnL  float64 `json:"race_pnl"`
}

// EquityCurve is the cumulative profit across races in settlement order
type EquityCurve []EquityPoint

// NewEquityCurve accumulates profit over the races that carried a bet.
// Drawdown is measured in money from the running peak, which starts at zero.
func NewEquityCurve(races []models.RaceSettlement) EquityCurve {
	curve := make(EquityCurve, 0, len(races))
	profit, peak := 0.0, 0.0
	for _, race := range races {
		if race.Bets == 0 {
			continue
		}
		pnl := race.Profit()
		profit += pnl
		if profit > peak {
			peak = profit
		}
		curve = append(curve, EquityPoint{
			RaceID:   race.RaceID,
			Profit:   profit,
			Peak:     peak,
			Drawdown: peak - profit,
			RacePnL:  pnl,
		})
	}
	return curve
}

// MaxDrawdown returns the largest fall from a running peak
func (e EquityCurve) MaxDrawdown() float64 {
	maxDD := 0.0
	for _, point := range e {
		if point.Drawdown > maxDD {
			maxDD = point.Drawdown
		}
	}
	return maxDD
}

// LongestLosingStreak counts the most consecutive races with negative PnL
func (e EquityCurve) LongestLosingStreak() int {
	longest, current := 0, 0
	for _, point := range e {
		if point.RacePnL < 0 {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 0
	}
	return longest
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("race_id,race_pnl,profit,peak,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.RaceID)
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.RacePnL))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Profit))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Peak))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Drawdown))
		buf.WriteString("\n")
	}
	return buf.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
