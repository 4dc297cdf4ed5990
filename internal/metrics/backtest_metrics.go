package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by policy and status",
	}, []string{"policy", "status"})
	BetsPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_placed_total",
		Help:      "Total number of simulated bets by policy",
	}, []string{"policy"})
)

// Backtest gauge vectors
var (
	BacktestROI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_roi_percent",
		Help:      "ROI percentage of the most recent backtest by policy",
	}, []string{"policy"})
	BacktestInvestment = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_investment",
		Help:      "Total investment of the most recent backtest by policy",
	}, []string{"policy"})
	BacktestReturn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_return",
		Help:      "Total return of the most recent backtest by policy",
	}, []string{"policy"})
)

// Backtest histograms
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "empty", "failure"
func RecordBacktestRun(policy, status string) {
	BacktestRunsTotal.WithLabelValues(policy, status).Inc()
}

// RecordBacktestResult updates the result gauges for a policy.
func RecordBacktestResult(policy string, bets int, investment, totalReturn, roi float64) {
	BetsPlacedTotal.WithLabelValues(policy).Add(float64(bets))
	BacktestInvestment.WithLabelValues(policy).Set(investment)
	BacktestReturn.WithLabelValues(policy).Set(totalReturn)
	BacktestROI.WithLabelValues(policy).Set(roi)
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}
