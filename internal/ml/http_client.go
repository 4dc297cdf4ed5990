package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/keiba-value/internal/config"
	"github.com/yourusername/keiba-value/internal/models"
)

const predictPath = "/api/v1/predict"

// PredictRequest is the scoring service request payload
type PredictRequest struct {
	ModelVersion string              `json:"model_version,omitempty"`
	Rows         []models.FeatureRow `json:"rows"`
}

// PredictResponse is the scoring service response payload
type PredictResponse struct {
	ModelVersion  string    `json:"model_version"`
	Probabilities []float64 `json:"probabilities"`
}

// HTTPPredictor scores rows through a remote service with retries and rate limiting
type HTTPPredictor struct {
	client       *retryablehttp.Client
	limiter      *rate.Limiter
	baseURL      string
	apiKey       string
	modelVersion string
	batchSize    int
	logger       *logrus.Logger
}

// NewHTTPPredictor creates a remote predictor
func NewHTTPPredictor(cfg *config.PredictorConfig, logger *logrus.Logger) (*HTTPPredictor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("predictor url is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = leveledLogger{entry: logger.WithField("component", "http_predictor")}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPPredictor{
		client:       retryClient,
		limiter:      rate.NewLimiter(limit, 1),
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		modelVersion: cfg.ModelVersion,
		batchSize:    batchSize,
		logger:       logger,
	}, nil
}

// ModelVersion returns the requested remote model version
func (c *HTTPPredictor) ModelVersion() string {
	return c.modelVersion
}

// Predict scores rows in batches
func (c *HTTPPredictor) Predict(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	start := time.Now()
	probs := make([]float64, 0, len(rows))

	for offset := 0; offset < len(rows); offset += c.batchSize {
		end := offset + c.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch, err := c.predictBatch(ctx, rows[offset:end])
		if err != nil {
			return nil, err
		}
		probs = append(probs, batch...)
	}

	MLPredictionsTotal.WithLabelValues("remote", "false").Add(float64(len(rows)))
	MLPredictionLatency.WithLabelValues("remote").Observe(time.Since(start).Seconds())

	c.logger.WithFields(logrus.Fields{
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Debug("Remote prediction completed")

	return probs, nil
}

func (c *HTTPPredictor) predictBatch(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	body, err := json.Marshal(PredictRequest{ModelVersion: c.modelVersion, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		MLRemoteErrorsTotal.WithLabelValues("predict", "network").Inc()
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		MLRemoteErrorsTotal.WithLabelValues("predict", "http_error").Inc()
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode, string(msg))
	}

	var predictResp PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predictResp); err != nil {
		MLRemoteErrorsTotal.WithLabelValues("predict", "decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := ValidatePredictions(len(rows), predictResp.Probabilities); err != nil {
		MLRemoteErrorsTotal.WithLabelValues("predict", "invalid").Inc()
		return nil, err
	}
	return predictResp.Probabilities, nil
}

// HealthCheck checks scoring service health
func (c *HTTPPredictor) HealthCheck(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (c *HTTPPredictor) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// retryPolicy retries network errors, 429 and 5xx gateway errors
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, err
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}

// leveledLogger routes retryablehttp logs through logrus
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Info(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
