package ml

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-value/internal/models"
)

// CachedPredictor wraps a Predictor with a prediction cache keyed by runner
// and model version
type CachedPredictor struct {
	next         Predictor
	cache        *PredictionCache
	modelVersion string
	logger       *logrus.Logger
}

// NewCachedPredictor creates a caching decorator around next
func NewCachedPredictor(next Predictor, cache *PredictionCache, modelVersion string, logger *logrus.Logger) *CachedPredictor {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedPredictor{
		next:         next,
		cache:        cache,
		modelVersion: modelVersion,
		logger:       logger,
	}
}

// Predict serves cached rows and forwards the rest in one call
func (c *CachedPredictor) Predict(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	probs := make([]float64, len(rows))
	var missIdx []int
	var misses []models.FeatureRow

	for i, row := range rows {
		if p, ok := c.cache.Get(ctx, c.key(row)); ok {
			probs[i] = p
			continue
		}
		missIdx = append(missIdx, i)
		misses = append(misses, row)
	}

	hits := len(rows) - len(misses)
	MLPredictionsTotal.WithLabelValues("cached", "true").Add(float64(hits))

	if len(misses) > 0 {
		scored, err := c.next.Predict(ctx, misses)
		if err != nil {
			return nil, err
		}
		if err := ValidatePredictions(len(misses), scored); err != nil {
			return nil, err
		}
		for k, i := range missIdx {
			probs[i] = scored[k]
			c.cache.Set(ctx, c.key(rows[i]), scored[k])
		}
	}

	c.logger.WithFields(logrus.Fields{
		"rows":          len(rows),
		"cache_hits":    hits,
		"model_version": c.modelVersion,
	}).Debug("Cached prediction completed")

	return probs, nil
}

func (c *CachedPredictor) key(row models.FeatureRow) CacheKey {
	return CacheKey{RaceID: row.RaceID, HorseNumber: row.HorseNumber, ModelVersion: c.modelVersion}
}
