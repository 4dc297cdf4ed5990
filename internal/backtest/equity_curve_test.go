package backtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-value/internal/models"
)

func TestNewEquityCurve(t *testing.T) {
	races := []models.RaceSettlement{
		{RaceID: "r1", Bets: 1, Investment: 100, Return: 300},
		{RaceID: "r2"},
		{RaceID: "r3", Bets: 2, Investment: 100},
		{RaceID: "r4", Bets: 1, Investment: 100},
		{RaceID: "r5", Bets: 1, Investment: 100, Return: 150},
	}

	curve := NewEquityCurve(races)
	require.Len(t, curve, 4)

	assert.Equal(t, "r1", curve[0].RaceID)
	assert.Equal(t, 200.0, curve[0].Profit)
	assert.Equal(t, 0.0, curve[0].Drawdown)
	assert.Equal(t, 0.0, curve[2].Profit)
	assert.Equal(t, 200.0, curve[2].Drawdown)
	assert.Equal(t, 50.0, curve[3].Profit)

	assert.Equal(t, 200.0, curve.MaxDrawdown())
	assert.Equal(t, 2, curve.LongestLosingStreak())
}

func TestEquityCurveEmpty(t *testing.T) {
	curve := NewEquityCurve(nil)
	assert.Empty(t, curve)
	assert.Equal(t, 0.0, curve.MaxDrawdown())
	assert.Equal(t, 0, curve.LongestLosingStreak())
}

func TestEquityCurveToCSV(t *testing.T) {
	curve := NewEquityCurve([]models.RaceSettlement{{RaceID: "r1", Bets: 1, Investment: 100}})

	lines := strings.Split(strings.TrimSpace(curve.ToCSV()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "race_id,race_pnl,profit,peak,drawdown", lines[0])
	assert.Equal(t, "r1,-100.00,-100.00,0.00,100.00", lines[1])
}
