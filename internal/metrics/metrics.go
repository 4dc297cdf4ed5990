// Package metrics provides the Prometheus registry for pipeline runs.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keiba"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecordsLoadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_loaded_total",
		Help:      "Total number of raw race records loaded by corpus",
	}, []string{"corpus"})
	FilesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_skipped_total",
		Help:      "Total number of malformed race files skipped by corpus",
	}, []string{"corpus"})
	RowsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_dropped_total",
		Help:      "Total number of rows dropped while building feature tables",
	}, []string{"reason"})
	RacesPartitionedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_partitioned_total",
		Help:      "Total number of races assigned to each partition",
	}, []string{"set"})
)

// Histogram metrics
var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"stage"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RecordsLoadedTotal)
		registry.MustRegister(FilesSkippedTotal)
		registry.MustRegister(RowsDroppedTotal)
		registry.MustRegister(RacesPartitionedTotal)
		registry.MustRegister(StageDuration)

		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BetsPlacedTotal)
		registry.MustRegister(BacktestROI)
		registry.MustRegister(BacktestInvestment)
		registry.MustRegister(BacktestReturn)
		registry.MustRegister(BacktestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Gatherer combines the pipeline registry with the default registry, which
// holds the predictor metrics.
func Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
}

// WriteTextfile writes every metric in the text exposition format, for
// collection by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Gatherer()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// RecordLoad records a corpus load.
func RecordLoad(corpus string, records, skipped int) {
	RecordsLoadedTotal.WithLabelValues(corpus).Add(float64(records))
	FilesSkippedTotal.WithLabelValues(corpus).Add(float64(skipped))
}

// RecordDroppedRows records rows dropped during table building.
func RecordDroppedRows(reason string, count int) {
	RowsDroppedTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordPartition records partition sizes.
func RecordPartition(training, evaluation int) {
	RacesPartitionedTotal.WithLabelValues("training").Add(float64(training))
	RacesPartitionedTotal.WithLabelValues("evaluation").Add(float64(evaluation))
}

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}
