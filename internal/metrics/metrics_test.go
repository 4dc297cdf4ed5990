package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordLoad(t *testing.T) {
	before := testutil.ToFloat64(RecordsLoadedTotal.WithLabelValues("unit"))
	RecordLoad("unit", 12, 1)

	assert.Equal(t, before+12, testutil.ToFloat64(RecordsLoadedTotal.WithLabelValues("unit")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(FilesSkippedTotal.WithLabelValues("unit")), 1.0)
}

func TestRecordBacktestResult(t *testing.T) {
	RecordBacktestResult("flat", 2, 200, 300, 150)

	assert.Equal(t, 150.0, testutil.ToFloat64(BacktestROI.WithLabelValues("flat")))
	assert.Equal(t, 200.0, testutil.ToFloat64(BacktestInvestment.WithLabelValues("flat")))
	assert.Equal(t, 300.0, testutil.ToFloat64(BacktestReturn.WithLabelValues("flat")))
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordDroppedRows("invalid_odds", 3)
		RecordPartition(8, 2)
		RecordStageDuration("load", 0.2)
		RecordBacktestRun("proportional", "success")
		RecordBacktestDuration(0.5)
	})
}

func TestWriteTextfile(t *testing.T) {
	RecordBacktestRun("flat", "success")
	path := filepath.Join(t.TempDir(), "metrics", "keiba.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keiba_backtest_runs_total")
}
