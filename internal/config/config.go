// Package config provides configuration management for the keiba-value pipeline.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Corpus    CorpusConfig    `mapstructure:"corpus" validate:"required"`
	Partition PartitionConfig `mapstructure:"partition" validate:"required"`
	Features  FeaturesConfig  `mapstructure:"features" validate:"required"`
	Model     ModelConfig     `mapstructure:"model" validate:"required"`
	Predictor PredictorConfig `mapstructure:"predictor" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// CorpusConfig locates the raw corpus and its two partitions
type CorpusConfig struct {
	RawDir        string `mapstructure:"raw_dir" validate:"required"`
	TrainingDir   string `mapstructure:"training_dir" validate:"required"`
	EvaluationDir string `mapstructure:"evaluation_dir" validate:"required"`
}

// PartitionConfig controls the train/evaluation split
type PartitionConfig struct {
	Ratio float64 `mapstructure:"ratio" validate:"gt=0,lte=1"`
	Seed  *int64  `mapstructure:"seed"`
}

// FeaturesConfig controls feature engineering
type FeaturesConfig struct {
	MinRides         int    `mapstructure:"min_rides" validate:"gte=0"`
	JockeyRateSource string `mapstructure:"jockey_rate_source" validate:"required,jockeysource"`
}

// ModelConfig controls the local classifier and its artifact
type ModelConfig struct {
	Path            string  `mapstructure:"path" validate:"required"`
	LearningRate    float64 `mapstructure:"learning_rate" validate:"gt=0"`
	Epochs          int     `mapstructure:"epochs" validate:"gt=0"`
	L2              float64 `mapstructure:"l2" validate:"gte=0"`
	ValidationSplit float64 `mapstructure:"validation_split" validate:"gte=0,lt=1"`
	Seed            int64   `mapstructure:"seed"`
	ClassBalanced   bool    `mapstructure:"class_balanced"`
	// IncludeOdds adds winOdds to the fitted columns
	IncludeOdds bool `mapstructure:"include_odds"`
}

// PredictorConfig selects between the local model and a remote scoring service
type PredictorConfig struct {
	Mode            string  `mapstructure:"mode" validate:"required,oneof=local remote"`
	URL             string  `mapstructure:"url" validate:"omitempty,url"`
	APIKey          string  `mapstructure:"api_key"`
	ModelVersion    string  `mapstructure:"model_version"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" validate:"gt=0"`
	MaxRetries      int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit       float64 `mapstructure:"rate_limit" validate:"gt=0"`
	BatchSize       int     `mapstructure:"batch_size" validate:"gt=0"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize    int     `mapstructure:"cache_max_size" validate:"gte=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	Policy          string    `mapstructure:"policy" validate:"required,policy"`
	Threshold       float64   `mapstructure:"threshold" validate:"gte=0"`
	UnitStake       float64   `mapstructure:"unit_stake" validate:"gt=0"`
	RaceBudget      float64   `mapstructure:"race_budget" validate:"gt=0"`
	TopN            int       `mapstructure:"top_n" validate:"gte=0"`
	Workers         int       `mapstructure:"workers" validate:"gte=0"`
	OutputPath      string    `mapstructure:"output_path"`
	ReportFormats   []string  `mapstructure:"report_formats" validate:"dive,oneof=console csv json xlsx"`
	SweepThresholds []float64 `mapstructure:"sweep_thresholds" validate:"dive,gte=0"`
	// BootstrapIterations of zero disables race resampling
	BootstrapIterations int     `mapstructure:"bootstrap_iterations" validate:"gte=0"`
	ConfidenceLevel     float64 `mapstructure:"confidence_level" validate:"gt=0,lt=1"`
}

// DatabaseConfig represents database connection configuration for run history
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"`
}

// SecretsConfig points at an AWS Secrets Manager secret overlaid on the config
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RequestTimeout returns the remote predictor timeout
func (c PredictorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the prediction cache TTL; zero disables caching
func (c PredictorConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
