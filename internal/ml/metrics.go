package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MLPredictionsTotal tracks scored rows by predictor source
	MLPredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of rows scored",
		},
		[]string{"source", "cache_hit"},
	)

	// MLPredictionLatency tracks prediction call latency
	MLPredictionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ml_prediction_latency_seconds",
			Help:    "Prediction call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// MLCacheHitRatio tracks cache hit ratio
	MLCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_cache_hit_ratio",
			Help: "Prediction cache hit ratio",
		},
	)

	// MLRemoteErrorsTotal tracks scoring service errors
	MLRemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_remote_errors_total",
			Help: "Total number of scoring service errors",
		},
		[]string{"method", "error_type"},
	)

	// MLTrainingRunsTotal tracks training runs
	MLTrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_training_runs_total",
			Help: "Total number of model training runs",
		},
		[]string{"status"},
	)

	// MLTrainingAccuracy is the hold-out accuracy of the last fit
	MLTrainingAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_training_accuracy",
			Help: "Hold-out accuracy of the most recent model",
		},
	)

	// MLTrainingLogLoss is the hold-out log loss of the last fit
	MLTrainingLogLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_training_log_loss",
			Help: "Hold-out log loss of the most recent model",
		},
	)
)
