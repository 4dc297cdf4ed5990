package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/keiba-value/internal/models"
)

// Report formats
const (
	FormatConsole = "console"
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatXLSX    = "xlsx"
)

// Report bundles a backtest result with its derived analytics
type Report struct {
	Result      models.BacktestResult `json:"result"`
	Curve       EquityCurve           `json:"equity_curve"`
	MaxDrawdown float64               `json:"max_drawdown"`
	Bootstrap   *BootstrapResult      `json:"bootstrap,omitempty"`
}

// NewReport derives the equity curve from the result's race ledger
func NewReport(result models.BacktestResult) Report {
	curve := NewEquityCurve(result.Races)
	return Report{
		Result:      result,
		Curve:       curve,
		MaxDrawdown: curve.MaxDrawdown(),
	}
}

// GenerateConsoleReport formats a backtest report for terminal output
func GenerateConsoleReport(report Report) string {
	r := report.Result
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Policy: %s (threshold %.2f, stake %.2f)\n", r.Policy, r.Threshold, r.Stake))
	builder.WriteString(fmt.Sprintf("Races: %d (bet on %d)\n", r.TotalRaces, r.BetRaces))
	builder.WriteString(fmt.Sprintf("Bets: %d (hits %d, hit rate %.2f%%)\n", r.NumBets, r.Hits, r.HitRate()*100))
	builder.WriteString(fmt.Sprintf("Total Investment: %.2f\n", r.TotalInvestment))
	builder.WriteString(fmt.Sprintf("Total Return: %.2f\n", r.TotalReturn))
	builder.WriteString(fmt.Sprintf("ROI: %.2f%%\n", r.ROI))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f\n", report.MaxDrawdown))
	if report.Bootstrap != nil {
		b := report.Bootstrap
		builder.WriteString(fmt.Sprintf("ROI %.0f%% interval: %.2f%% to %.2f%% (P(profit) %.2f)\n",
			b.ConfidenceLevel*100, b.LowerROI, b.UpperROI, b.ProbabilityOfProfit))
	}
	if !r.HasBets() {
		builder.WriteString("No bets qualified.\n")
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("\nTop %d bets by expected value\n", len(r.TopBets)))
	for _, row := range r.TopBets {
		builder.WriteString(fmt.Sprintf("  %s #%d %s (%s) EV %.3f odds %.1f p %.3f rank %d\n",
			row.RaceID, row.HorseNumber, row.HorseName, row.Jockey,
			row.ExpectedValue, row.WinOdds, row.NormalizedWinRate, row.Rank))
	}
	return builder.String()
}

// GenerateSweepReport formats a threshold sweep as a table
func GenerateSweepReport(sweep SweepResult) string {
	var builder strings.Builder
	builder.WriteString("Threshold Sweep\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("%-10s %8s %8s %12s %12s %10s\n", "threshold", "races", "bets", "investment", "return", "roi"))
	for _, r := range sweep.Results {
		builder.WriteString(fmt.Sprintf("%-10.2f %8d %8d %12.2f %12.2f %9.2f%%\n",
			r.Threshold, r.BetRaces, r.NumBets, r.TotalInvestment, r.TotalReturn, r.ROI))
	}
	if sweep.Best == nil {
		builder.WriteString("No threshold placed a bet.\n")
	} else {
		builder.WriteString(fmt.Sprintf("Best threshold: %.2f (ROI %.2f%%)\n", sweep.Best.Threshold, sweep.Best.ROI))
	}
	return builder.String()
}

// ExportCSV writes the summary metrics followed by the top bets
func ExportCSV(report Report, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV report: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write([]string{"metric", "value"})
	for _, m := range summaryMetrics(report) {
		w.Write([]string{m.name, m.value})
	}
	w.Write(nil)
	w.Write(topBetHeaders)
	for _, row := range report.Result.TopBets {
		w.Write(topBetRecord(row))
	}
	w.Flush()
	return w.Error()
}

// ExportJSON writes the full report as indented JSON
func ExportJSON(report Report, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// ExportXLSX writes a workbook with Summary, Top Bets and Equity sheets
func ExportXLSX(report Report, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return err
	}
	summary := make([][]interface{}, 0)
	for _, m := range summaryMetrics(report) {
		summary = append(summary, []interface{}{m.name, m.value})
	}
	if err := writeSheet(f, "Summary", []string{"metric", "value"}, summary); err != nil {
		return err
	}

	bets := make([][]interface{}, 0, len(report.Result.TopBets))
	for _, row := range report.Result.TopBets {
		bets = append(bets, []interface{}{
			row.RaceID, row.HorseNumber, row.HorseName, row.Jockey, row.Rank,
			row.WinOdds, row.PredictedWinRate, row.NormalizedWinRate, row.ExpectedValue,
		})
	}
	if err := writeSheet(f, "Top Bets", topBetHeaders, bets); err != nil {
		return err
	}

	equity := make([][]interface{}, 0, len(report.Curve))
	for _, point := range report.Curve {
		equity = append(equity, []interface{}{point.RaceID, point.RacePnL, point.Profit, point.Peak, point.Drawdown})
	}
	if err := writeSheet(f, "Equity", []string{"race_id", "race_pnl", "profit", "peak", "drawdown"}, equity); err != nil {
		return err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Export writes the report in each file format and returns the written
// paths. The console format is skipped.
func Export(report Report, formats []string, outputDir string) ([]string, error) {
	base := fmt.Sprintf("backtest_%s_%s", report.Result.Policy, strconv.FormatFloat(report.Result.Threshold, 'f', 2, 64))
	var written []string
	for _, format := range formats {
		path := filepath.Join(outputDir, base+"."+format)
		var err error
		switch format {
		case FormatConsole:
			continue
		case FormatCSV:
			err = ExportCSV(report, path)
		case FormatJSON:
			err = ExportJSON(report, path)
		case FormatXLSX:
			err = ExportXLSX(report, path)
		default:
			err = fmt.Errorf("unsupported report format %q", format)
		}
		if err != nil {
			return written, fmt.Errorf("failed to export %s report: %w", format, err)
		}
		written = append(written, path)
	}
	return written, nil
}

var topBetHeaders = []string{
	"race_id", "horse_number", "horse_name", "jockey", "rank",
	"win_odds", "predicted_win_rate", "normalized_win_rate", "expected_value",
}

func topBetRecord(row models.ScoredRow) []string {
	return []string{
		row.RaceID,
		strconv.Itoa(row.HorseNumber),
		row.HorseName,
		row.Jockey,
		strconv.Itoa(row.Rank),
		strconv.FormatFloat(row.WinOdds, 'f', 1, 64),
		strconv.FormatFloat(row.PredictedWinRate, 'f', 4, 64),
		strconv.FormatFloat(row.NormalizedWinRate, 'f', 4, 64),
		strconv.FormatFloat(row.ExpectedValue, 'f', 4, 64),
	}
}

type metric struct {
	name  string
	value string
}

func summaryMetrics(report Report) []metric {
	r := report.Result
	metrics := []metric{
		{"policy", r.Policy},
		{"threshold", fmt.Sprintf("%.2f", r.Threshold)},
		{"stake", fmt.Sprintf("%.2f", r.Stake)},
		{"total_races", strconv.Itoa(r.TotalRaces)},
		{"bet_races", strconv.Itoa(r.BetRaces)},
		{"num_bets", strconv.Itoa(r.NumBets)},
		{"hits", strconv.Itoa(r.Hits)},
		{"total_investment", fmt.Sprintf("%.2f", r.TotalInvestment)},
		{"total_return", fmt.Sprintf("%.2f", r.TotalReturn)},
		{"roi", fmt.Sprintf("%.2f", r.ROI)},
		{"max_drawdown", fmt.Sprintf("%.2f", report.MaxDrawdown)},
	}
	if report.Bootstrap != nil {
		metrics = append(metrics,
			metric{"roi_lower", fmt.Sprintf("%.2f", report.Bootstrap.LowerROI)},
			metric{"roi_upper", fmt.Sprintf("%.2f", report.Bootstrap.UpperROI)},
		)
	}
	return metrics
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
