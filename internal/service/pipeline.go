// Package service runs the value-betting pipeline: partition, train, score
// and backtest.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-value/internal/backtest"
	"github.com/yourusername/keiba-value/internal/config"
	"github.com/yourusername/keiba-value/internal/datasource"
	"github.com/yourusername/keiba-value/internal/features"
	"github.com/yourusername/keiba-value/internal/logger"
	"github.com/yourusername/keiba-value/internal/metrics"
	"github.com/yourusername/keiba-value/internal/ml"
	"github.com/yourusername/keiba-value/internal/models"
	"github.com/yourusername/keiba-value/internal/partition"
	"github.com/yourusername/keiba-value/internal/preprocess"
	"github.com/yourusername/keiba-value/internal/repository"
)

// topJockeysLogged is how many leading jockeys Train logs
const topJockeysLogged = 5

// Corpus names used in logs and metrics
const (
	CorpusRaw        = "raw"
	CorpusTraining   = "training"
	CorpusEvaluation = "evaluation"
)

// Pipeline runs each stage against the configured corpus directories
type Pipeline struct {
	cfg       *config.Config
	logger    *logrus.Logger
	events    *logger.PipelineLogger
	validator *DataValidator
	runs      repository.BacktestRunRepository
	scorer    *scorer
	// cache is shared by every scoring call so retraining can retire the
	// predictions of the model it replaces
	cache         *ml.PredictionCache
	servedVersion string
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithRunRepository persists every backtest run to repo
func WithRunRepository(repo repository.BacktestRunRepository) Option {
	return func(p *Pipeline) {
		p.runs = repo
	}
}

// WithPredictor replaces the configured predictor. columns are imputed before
// prediction; version is recorded on persisted runs.
func WithPredictor(predictor ml.Predictor, columns []string, version string) Option {
	return func(p *Pipeline) {
		p.scorer = &scorer{predictor: predictor, columns: columns, version: version}
	}
}

// NewPipeline creates a pipeline from configuration
func NewPipeline(cfg *config.Config, log *logrus.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logrus.New()
	}
	if _, err := features.ParseJockeyRateSource(cfg.Features.JockeyRateSource); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    log,
		events:    logger.NewPipelineLogger(log),
		validator: NewDataValidator(log),
	}
	if ttl := cfg.Predictor.CacheTTL(); ttl > 0 {
		p.cache = ml.NewPredictionCache(ttl, cfg.Predictor.CacheMaxSize)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PartitionRawData splits the raw corpus into the training and evaluation
// directories. A ratio of zero uses the configured ratio and a nil seed the
// configured seed, which may itself be nil for a random, logged seed.
func (p *Pipeline) PartitionRawData(ctx context.Context, ratio float64, seed *int64) (partition.Result, error) {
	start := time.Now()
	if ratio == 0 {
		ratio = p.cfg.Partition.Ratio
	}
	if seed == nil {
		seed = p.cfg.Partition.Seed
	}

	result, err := partition.NewPartitioner(p.logger).Partition(ctx, partition.Options{
		SourceDir:     p.cfg.Corpus.RawDir,
		TrainingDir:   p.cfg.Corpus.TrainingDir,
		EvaluationDir: p.cfg.Corpus.EvaluationDir,
		Ratio:         ratio,
		Seed:          seed,
	})
	if err != nil {
		return partition.Result{}, err
	}

	metrics.RecordPartition(len(result.Training), len(result.Evaluation))
	metrics.RecordStageDuration("partition", time.Since(start).Seconds())
	p.events.LogPartition(result.Seed, ratio, len(result.Training), len(result.Evaluation))
	return result, nil
}

// Train fits a model on the training corpus and saves the artifact to the
// configured model path
func (p *Pipeline) Train(ctx context.Context) (*ml.TrainingReport, error) {
	start := time.Now()
	records, err := p.loadCorpus(ctx, CorpusTraining, p.cfg.Corpus.TrainingDir)
	if err != nil {
		return nil, err
	}

	stats := features.JockeyStats(records, p.cfg.Features.MinRides)
	rates := make(map[string]float64, len(stats))
	for jockey, stat := range stats {
		rates[jockey] = stat.WinRate
	}
	for _, top := range features.TopJockeys(stats, topJockeysLogged) {
		p.logger.WithFields(logrus.Fields{
			"jockey":   top.Jockey,
			"rides":    top.Rides,
			"wins":     top.Wins,
			"win_rate": top.WinRate,
		}).Debug("Top jockey in training corpus")
	}
	columns := p.trainingColumns()
	rows, err := p.buildTable(CorpusTraining, records, rates, columns)
	if err != nil {
		return nil, err
	}

	trainer := ml.NewTrainer(ml.TrainerConfigFrom(p.cfg.Model), p.logger)
	model, report, err := trainer.Train(ctx, rows, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	if err := ml.SaveModel(p.cfg.Model.Path, model); err != nil {
		return nil, err
	}
	p.retireServedPredictions(ctx)

	metrics.RecordStageDuration("train", time.Since(start).Seconds())
	p.events.LogModelTraining(p.cfg.Model.Path, len(rows), report.Accuracy, report.LogLoss, report.Duration)
	return report, nil
}

// PredictEvaluation scores the evaluation corpus with the configured predictor
func (p *Pipeline) PredictEvaluation(ctx context.Context) ([]models.ScoredRow, error) {
	scored, _, err := p.predictEvaluation(ctx)
	return scored, err
}

// Backtest scores the evaluation corpus and simulates a policy over it. An
// empty policy, a negative threshold or a non-positive stake fall back to the
// configured values. stake is the unit stake for the flat policy and the
// per-race budget for the proportional policy.
func (p *Pipeline) Backtest(ctx context.Context, policy string, threshold, stake float64) (backtest.Report, error) {
	btCfg, err := p.backtestConfig(policy, stake)
	if err != nil {
		return backtest.Report{}, err
	}
	if threshold < 0 {
		threshold = btCfg.Threshold
	}

	scored, version, err := p.predictEvaluation(ctx)
	if err != nil {
		return backtest.Report{}, err
	}
	return p.BacktestScored(ctx, scored, btCfg.NewPolicy(threshold), version)
}

// BacktestScored simulates policy over an already scored table, then records
// metrics, exports reports and persists the run
func (p *Pipeline) BacktestScored(ctx context.Context, scored []models.ScoredRow, policy backtest.Policy, modelVersion string) (backtest.Report, error) {
	start := time.Now()
	btCfg, err := backtest.FromConfig(&p.cfg.Backtest)
	if err != nil {
		return backtest.Report{}, err
	}

	result, err := policy.Simulate(ctx, scored)
	if err != nil {
		metrics.RecordBacktestRun(policy.Name(), "failure")
		return backtest.Report{}, fmt.Errorf("failed to simulate %s policy: %w", policy.Name(), err)
	}

	report := backtest.NewReport(result)
	if btCfg.BootstrapIterations > 0 {
		bootstrap, err := backtest.RunBootstrap(ctx, result.Races, btCfg.Bootstrap(p.cfg.Model.Seed))
		if err != nil {
			return backtest.Report{}, err
		}
		report.Bootstrap = &bootstrap
	}

	metrics.RecordBacktestRun(result.Policy, "success")
	metrics.RecordBacktestResult(result.Policy, result.NumBets, result.TotalInvestment, result.TotalReturn, result.ROI)
	metrics.RecordBacktestDuration(time.Since(start).Seconds())
	p.events.LogBacktest(result.Policy, result.Threshold, result.TotalRaces, result.BetRaces, result.NumBets,
		result.TotalInvestment, result.TotalReturn, result.ROI)

	if btCfg.OutputPath != "" {
		files, err := backtest.Export(report, btCfg.ReportFormats, btCfg.OutputPath)
		if err != nil {
			return report, err
		}
		for _, f := range files {
			p.logger.WithField("path", f).Info("Backtest report written")
		}
	}

	if p.runs != nil {
		run := models.NewBacktestRun(result, modelVersion)
		if err := p.runs.Create(ctx, run); err != nil {
			return report, fmt.Errorf("failed to persist backtest run: %w", err)
		}
		p.events.LogRunPersisted(run.ID.String(), run.Policy)
	}

	return report, nil
}

// Sweep scores the evaluation corpus once and runs the policy at every
// threshold. Empty thresholds use the configured sweep list.
func (p *Pipeline) Sweep(ctx context.Context, policy string, thresholds []float64) (backtest.SweepResult, error) {
	btCfg, err := p.backtestConfig(policy, 0)
	if err != nil {
		return backtest.SweepResult{}, err
	}
	if len(thresholds) == 0 {
		thresholds = btCfg.SweepThresholds
	}

	scored, _, err := p.predictEvaluation(ctx)
	if err != nil {
		return backtest.SweepResult{}, err
	}

	sweep, err := backtest.Sweep(ctx, scored, thresholds, btCfg.NewPolicy)
	if err != nil {
		return backtest.SweepResult{}, err
	}

	bestThreshold, bestROI := 0.0, 0.0
	if sweep.Best != nil {
		bestThreshold, bestROI = sweep.Best.Threshold, sweep.Best.ROI
	}
	p.events.LogSweep(btCfg.Policy, len(sweep.Results), bestThreshold, bestROI)
	return sweep, nil
}

func (p *Pipeline) predictEvaluation(ctx context.Context) ([]models.ScoredRow, string, error) {
	start := time.Now()
	sc, err := p.resolveScorer(ctx)
	if err != nil {
		return nil, "", err
	}
	defer sc.Close()

	records, err := p.loadCorpus(ctx, CorpusEvaluation, p.cfg.Corpus.EvaluationDir)
	if err != nil {
		return nil, "", err
	}
	rates, err := p.evaluationRates(ctx, records)
	if err != nil {
		return nil, "", err
	}
	rows, err := p.buildTable(CorpusEvaluation, records, rates, sc.columns)
	if err != nil {
		return nil, "", err
	}

	probs, err := sc.predictor.Predict(ctx, rows)
	if err != nil {
		return nil, "", fmt.Errorf("failed to predict: %w", err)
	}
	if err := ml.ValidatePredictions(len(rows), probs); err != nil {
		return nil, "", err
	}
	scored, err := backtest.Score(rows, probs)
	if err != nil {
		return nil, "", err
	}
	p.servedVersion = sc.version

	duration := time.Since(start)
	metrics.RecordStageDuration("predict", duration.Seconds())
	p.events.LogPrediction(sc.version, len(scored), countRaces(scored), duration)
	return scored, sc.version, nil
}

// retireServedPredictions drops cached predictions of the last model used for
// scoring. A retrained artifact can reuse the version string, so the entries
// are dropped even when the new version matches.
func (p *Pipeline) retireServedPredictions(ctx context.Context) {
	if p.cache == nil || p.servedVersion == "" {
		return
	}
	removed := p.cache.InvalidateModel(ctx, p.servedVersion)
	p.logger.WithFields(logrus.Fields{
		"model_version": p.servedVersion,
		"removed":       removed,
	}).Info("Invalidated cached predictions after retraining")
	p.servedVersion = ""
}

// evaluationRates applies the configured jockey rate source
func (p *Pipeline) evaluationRates(ctx context.Context, evaluation []models.RaceObservation) (map[string]float64, error) {
	source, _ := features.ParseJockeyRateSource(p.cfg.Features.JockeyRateSource)
	if source == features.RateSourceInSample {
		return features.JockeyWinRates(evaluation, p.cfg.Features.MinRides), nil
	}

	training, err := p.loadCorpus(ctx, CorpusTraining, p.cfg.Corpus.TrainingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load training corpus for jockey rates: %w", err)
	}
	return features.JockeyWinRates(training, p.cfg.Features.MinRides), nil
}

func (p *Pipeline) loadCorpus(ctx context.Context, corpus, dir string) ([]models.RaceObservation, error) {
	records, stats, err := datasource.NewDirectorySource(dir, p.logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordLoad(corpus, stats.Records, len(stats.SkippedFiles))
	p.events.LogCorpusLoaded(corpus, dir, stats.Files, stats.Records, len(stats.SkippedFiles))

	if len(records) == 0 {
		return nil, fmt.Errorf("%s corpus %s: %w", corpus, dir, models.ErrEmptyResult)
	}

	if issues := p.validator.ValidateCorpus(records); len(issues) > 0 {
		p.logger.WithFields(logrus.Fields{
			"corpus": corpus,
			"races":  len(issues),
		}).Warn("Races with data anomalies")
	}
	return records, nil
}

func (p *Pipeline) buildTable(corpus string, records []models.RaceObservation, rates map[string]float64, columns []string) ([]models.FeatureRow, error) {
	rows, stats := preprocess.BuildTableWithStats(records, rates)
	metrics.RecordDroppedRows("missing", stats.DroppedMissing)
	metrics.RecordDroppedRows("odds", stats.DroppedOdds)
	p.events.LogTableBuilt(corpus, stats.Input, stats.Kept, stats.DroppedMissing, stats.DroppedOdds, len(rates))

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s table: %w", corpus, models.ErrEmptyResult)
	}
	imputed, err := preprocess.Impute(rows, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to impute %s table: %w", corpus, err)
	}
	return imputed, nil
}

func (p *Pipeline) trainingColumns() []string {
	if p.cfg.Model.IncludeOdds {
		return preprocess.TrainingFeatures
	}
	return preprocess.ScoringFeatures
}

func (p *Pipeline) backtestConfig(policy string, stake float64) (backtest.BacktestConfig, error) {
	btCfg, err := backtest.FromConfig(&p.cfg.Backtest)
	if err != nil {
		return backtest.BacktestConfig{}, err
	}
	if policy != "" {
		btCfg.Policy = policy
	}
	if stake > 0 {
		btCfg.UnitStake = stake
		btCfg.RaceBudget = stake
	}
	return btCfg, btCfg.Validate()
}

func countRaces(rows []models.ScoredRow) int {
	seen := make(map[string]struct{})
	for _, row := range rows {
		seen[row.RaceID] = struct{}{}
	}
	return len(seen)
}

// IsRecoverable reports whether err is one of the expected data conditions
// that end a stage without indicating a fault
func IsRecoverable(err error) bool {
	return errors.Is(err, models.ErrMissingSource) ||
		errors.Is(err, models.ErrEmptyResult) ||
		errors.Is(err, ml.ErrModelNotFound)
}
