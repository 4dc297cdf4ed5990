package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/keiba-value/internal/config"
	"github.com/yourusername/keiba-value/internal/models"
	"github.com/yourusername/keiba-value/internal/preprocess"
)

const logLossEpsilon = 1e-15

// TrainerConfig controls gradient-descent fitting
type TrainerConfig struct {
	LearningRate    float64
	Epochs          int
	L2              float64
	ValidationSplit float64
	Seed            int64
	ClassBalanced   bool
}

// TrainerConfigFrom maps the model section of the application config
func TrainerConfigFrom(cfg config.ModelConfig) TrainerConfig {
	return TrainerConfig{
		LearningRate:    cfg.LearningRate,
		Epochs:          cfg.Epochs,
		L2:              cfg.L2,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		ClassBalanced:   cfg.ClassBalanced,
	}
}

// ConfusionMatrix counts outcomes at a 0.5 decision boundary
type ConfusionMatrix struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

// TrainingReport summarises a fit and its hold-out evaluation
type TrainingReport struct {
	Columns           []string        `json:"columns"`
	TrainSamples      int             `json:"train_samples"`
	ValidationSamples int             `json:"validation_samples"`
	Positives         int             `json:"positives"`
	Epochs            int             `json:"epochs"`
	Accuracy          float64         `json:"accuracy"`
	Precision         float64         `json:"precision"`
	Recall            float64         `json:"recall"`
	LogLoss           float64         `json:"log_loss"`
	Confusion         ConfusionMatrix `json:"confusion"`
	Duration          time.Duration   `json:"duration"`
}

// Trainer fits a LogisticModel on a feature table
type Trainer struct {
	cfg    TrainerConfig
	logger *logrus.Logger
}

// NewTrainer creates a trainer
func NewTrainer(cfg TrainerConfig, logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train fits a model on rows using the given columns. Rows must already be
// imputed. A stratified share of rows is held out for the report; when the
// hold-out is empty the report is computed on the training rows.
func (t *Trainer) Train(ctx context.Context, rows []models.FeatureRow, columns []string) (*LogisticModel, *TrainingReport, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("cannot train: %w", models.ErrEmptyResult)
	}
	if t.cfg.Epochs <= 0 || t.cfg.LearningRate <= 0 {
		return nil, nil, fmt.Errorf("epochs and learning rate must be positive")
	}

	start := time.Now()
	matrix, err := preprocess.FeatureMatrix(rows, columns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build feature matrix: %w", err)
	}
	labels := preprocess.Labels(rows)

	trainIdx, valIdx := stratifiedSplit(labels, t.cfg.ValidationSplit, t.cfg.Seed)

	model, err := t.fit(ctx, pick(matrix, trainIdx), pickLabels(labels, trainIdx), columns)
	if err != nil {
		MLTrainingRunsTotal.WithLabelValues("failure").Inc()
		return nil, nil, err
	}

	evalIdx := valIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	report := Evaluate(model, pick(matrix, evalIdx), pickLabels(labels, evalIdx))
	report.Columns = append([]string{}, columns...)
	report.TrainSamples = len(trainIdx)
	report.ValidationSamples = len(valIdx)
	report.Epochs = t.cfg.Epochs
	report.Duration = time.Since(start)

	model.Version = start.UTC().Format("20060102T150405Z")
	model.TrainedAt = start.UTC()
	model.Report = report

	MLTrainingRunsTotal.WithLabelValues("success").Inc()
	MLTrainingAccuracy.Set(report.Accuracy)
	MLTrainingLogLoss.Set(report.LogLoss)

	t.logger.WithFields(logrus.Fields{
		"train_samples":      report.TrainSamples,
		"validation_samples": report.ValidationSamples,
		"accuracy":           report.Accuracy,
		"log_loss":           report.LogLoss,
		"duration":           report.Duration,
	}).Info("Model training completed")

	return model, report, nil
}

func (t *Trainer) fit(ctx context.Context, x [][]float64, y []float64, columns []string) (*LogisticModel, error) {
	n := len(columns)
	model := &LogisticModel{
		Columns: append([]string{}, columns...),
		Means:   make([]float64, n),
		Scales:  make([]float64, n),
		Weights: make([]float64, n),
	}

	for j := 0; j < n; j++ {
		col := make(stats.Float64Data, len(x))
		for i := range x {
			col[i] = x[i][j]
		}
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("failed to compute mean of %s: %w", columns[j], err)
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("failed to compute deviation of %s: %w", columns[j], err)
		}
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		model.Means[j] = mean
		model.Scales[j] = sd
	}

	standardised := make([][]float64, len(x))
	for i, raw := range x {
		standardised[i] = model.standardise(raw)
	}

	weights := sampleWeights(y, t.cfg.ClassBalanced)
	total := floats.Sum(weights)
	grad := make([]float64, n)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i, xi := range standardised {
			p := sigmoid(floats.Dot(model.Weights, xi) + model.Bias)
			e := (p - y[i]) * weights[i]
			floats.AddScaled(grad, e, xi)
			gradBias += e
		}
		floats.Scale(1/total, grad)
		floats.AddScaled(grad, t.cfg.L2, model.Weights)
		floats.AddScaled(model.Weights, -t.cfg.LearningRate, grad)
		model.Bias -= t.cfg.LearningRate * gradBias / total
	}

	return model, nil
}

// Evaluate scores raw feature vectors against labels
func Evaluate(model *LogisticModel, x [][]float64, y []float64) *TrainingReport {
	report := &TrainingReport{}
	if len(x) == 0 {
		return report
	}

	var loss float64
	for i, raw := range x {
		p := model.score(raw)
		actual := y[i] == 1
		predicted := p >= 0.5
		if actual {
			report.Positives++
		}
		switch {
		case actual && predicted:
			report.Confusion.TruePositive++
		case !actual && predicted:
			report.Confusion.FalsePositive++
		case !actual && !predicted:
			report.Confusion.TrueNegative++
		default:
			report.Confusion.FalseNegative++
		}
		clipped := math.Min(math.Max(p, logLossEpsilon), 1-logLossEpsilon)
		loss -= y[i]*math.Log(clipped) + (1-y[i])*math.Log(1-clipped)
	}

	c := report.Confusion
	report.Accuracy = float64(c.TruePositive+c.TrueNegative) / float64(len(x))
	if c.TruePositive+c.FalsePositive > 0 {
		report.Precision = float64(c.TruePositive) / float64(c.TruePositive+c.FalsePositive)
	}
	if c.TruePositive+c.FalseNegative > 0 {
		report.Recall = float64(c.TruePositive) / float64(c.TruePositive+c.FalseNegative)
	}
	report.LogLoss = loss / float64(len(x))
	return report
}

// sampleWeights balances the classes so each contributes equally to the loss
func sampleWeights(y []float64, balanced bool) []float64 {
	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	if !balanced {
		return weights
	}

	var positives float64
	for _, v := range y {
		positives += v
	}
	negatives := float64(len(y)) - positives
	if positives == 0 || negatives == 0 {
		return weights
	}

	n := float64(len(y))
	for i, v := range y {
		if v == 1 {
			weights[i] = n / (2 * positives)
		} else {
			weights[i] = n / (2 * negatives)
		}
	}
	return weights
}

// stratifiedSplit holds out round(share*count) rows of each class
func stratifiedSplit(y []float64, share float64, seed int64) ([]int, []int) {
	byClass := map[float64][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}

	rng := rand.New(rand.NewSource(seed))
	var train, val []int
	for _, class := range []float64{0, 1} {
		idx := byClass[class]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		cut := int(math.Round(float64(len(idx)) * share))
		val = append(val, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}

	sort.Ints(train)
	sort.Ints(val)
	if len(train) == 0 {
		return val, nil
	}
	return train, val
}

func pick(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, k := range idx {
		out[i] = x[k]
	}
	return out
}

func pickLabels(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = y[k]
	}
	return out
}
