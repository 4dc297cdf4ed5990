package service

import (
	"context"
	"fmt"

	"github.com/yourusername/keiba-value/internal/ml"
	"github.com/yourusername/keiba-value/internal/preprocess"
)

// scorer is a predictor together with the columns it reads
type scorer struct {
	predictor ml.Predictor
	columns   []string
	version   string
	close     func() error
}

// Close releases the predictor's resources
func (s *scorer) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// resolveScorer builds the configured predictor, optionally behind the
// pipeline's prediction cache. A remote service must pass its health check.
func (p *Pipeline) resolveScorer(ctx context.Context) (*scorer, error) {
	if p.scorer != nil {
		return p.scorer, nil
	}

	var sc *scorer
	switch p.cfg.Predictor.Mode {
	case "remote":
		client, err := ml.NewHTTPPredictor(&p.cfg.Predictor, p.logger)
		if err != nil {
			return nil, err
		}
		if err := client.HealthCheck(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("remote predictor at %s: %w", p.cfg.Predictor.URL, err)
		}
		sc = &scorer{
			predictor: client,
			columns:   preprocess.ScoringFeatures,
			version:   client.ModelVersion(),
			close:     client.Close,
		}
	default:
		model, err := ml.LoadModel(p.cfg.Model.Path)
		if err != nil {
			return nil, err
		}
		sc = &scorer{predictor: model, columns: model.Columns, version: model.Version}
	}

	if p.cache != nil {
		sc.predictor = ml.NewCachedPredictor(sc.predictor, p.cache, sc.version, p.logger)
	}
	return sc, nil
}
