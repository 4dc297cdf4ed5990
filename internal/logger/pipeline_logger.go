package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineLogger provides dedicated logging for pipeline stages.
type PipelineLogger struct {
	*logrus.Entry
}

// NewPipelineLogger creates a new pipeline logger.
func NewPipelineLogger(baseLogger *logrus.Logger) *PipelineLogger {
	return &PipelineLogger{
		Entry: baseLogger.WithField("component", "pipeline"),
	}
}

// LogCorpusLoaded logs a corpus load.
func (pl *PipelineLogger) LogCorpusLoaded(corpus, dir string, files, records, skipped int) {
	pl.WithFields(logrus.Fields{
		"event_type": "corpus_loaded",
		"corpus":     corpus,
		"dir":        dir,
		"files":      files,
		"records":    records,
		"skipped":    skipped,
	}).Info("Corpus loaded")
}

// LogPartition logs a completed partition.
func (pl *PipelineLogger) LogPartition(seed int64, ratio float64, training, evaluation int) {
	pl.WithFields(logrus.Fields{
		"event_type": "partition",
		"seed":       seed,
		"ratio":      ratio,
		"training":   training,
		"evaluation": evaluation,
	}).Info("Corpus partitioned")
}

// LogTableBuilt logs feature table construction.
func (pl *PipelineLogger) LogTableBuilt(corpus string, input, kept, droppedMissing, droppedOdds, jockeys int) {
	pl.WithFields(logrus.Fields{
		"event_type":      "table_built",
		"corpus":          corpus,
		"input":           input,
		"kept":            kept,
		"dropped_missing": droppedMissing,
		"dropped_odds":    droppedOdds,
		"jockeys":         jockeys,
	}).Info("Feature table built")
}

// LogModelTraining logs model training.
func (pl *PipelineLogger) LogModelTraining(path string, samples int, accuracy, logLoss float64, duration time.Duration) {
	pl.WithFields(logrus.Fields{
		"event_type": "model_trained",
		"model_path": path,
		"samples":    samples,
		"accuracy":   accuracy,
		"log_loss":   logLoss,
		"duration":   duration.String(),
	}).Info("Model training completed")
}

// LogPrediction logs scoring of the evaluation table.
func (pl *PipelineLogger) LogPrediction(modelVersion string, rows, races int, duration time.Duration) {
	pl.WithFields(logrus.Fields{
		"event_type":    "prediction",
		"model_version": modelVersion,
		"rows":          rows,
		"races":         races,
		"duration":      duration.String(),
	}).Info("Evaluation set scored")
}

// LogBacktest logs a backtest result.
func (pl *PipelineLogger) LogBacktest(policy string, threshold float64, races, betRaces, bets int, investment, totalReturn, roi float64) {
	pl.WithFields(logrus.Fields{
		"event_type":   "backtest",
		"policy":       policy,
		"threshold":    threshold,
		"races":        races,
		"bet_races":    betRaces,
		"bets":         bets,
		"investment":   investment,
		"total_return": totalReturn,
		"roi":          roi,
	}).Info("Backtest completed")
}

// LogSweep logs a threshold sweep.
func (pl *PipelineLogger) LogSweep(policy string, runs int, bestThreshold, bestROI float64) {
	pl.WithFields(logrus.Fields{
		"event_type":     "sweep",
		"policy":         policy,
		"runs":           runs,
		"best_threshold": bestThreshold,
		"best_roi":       bestROI,
	}).Info("Threshold sweep completed")
}

// LogRunPersisted logs a stored backtest run.
func (pl *PipelineLogger) LogRunPersisted(runID, policy string) {
	pl.WithFields(logrus.Fields{
		"event_type": "run_persisted",
		"run_id":     runID,
		"policy":     policy,
	}).Info("Backtest run recorded")
}
