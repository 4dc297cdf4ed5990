package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is used when no config path is given
const DefaultPath = "config/config.yaml"

const envPrefix = "KEIBA"

// Load reads and parses the configuration from file and environment variables.
// Environment variable placeholders in the YAML file (${VAR_NAME}) are expanded.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults is Load but tolerates a missing file, falling back to
// defaults and environment variables
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	v := newViper()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keiba-value")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("corpus.raw_dir", "data/raw")
	v.SetDefault("corpus.training_dir", "data/training")
	v.SetDefault("corpus.evaluation_dir", "data/untouched")

	v.SetDefault("partition.ratio", 0.8)

	v.SetDefault("features.min_rides", 20)
	v.SetDefault("features.jockey_rate_source", "in_sample")

	v.SetDefault("model.path", "models/win_model.json")
	v.SetDefault("model.learning_rate", 0.1)
	v.SetDefault("model.epochs", 500)
	v.SetDefault("model.l2", 0.0)
	v.SetDefault("model.validation_split", 0.2)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.class_balanced", true)
	v.SetDefault("model.include_odds", false)

	v.SetDefault("predictor.mode", "local")
	v.SetDefault("predictor.timeout_seconds", 30)
	v.SetDefault("predictor.max_retries", 3)
	v.SetDefault("predictor.rate_limit", 10.0)
	v.SetDefault("predictor.batch_size", 500)
	v.SetDefault("predictor.cache_ttl_seconds", 0)
	v.SetDefault("predictor.cache_max_size", 100000)

	v.SetDefault("backtest.policy", "proportional")
	v.SetDefault("backtest.threshold", 1.0)
	v.SetDefault("backtest.unit_stake", 100.0)
	v.SetDefault("backtest.race_budget", 100.0)
	v.SetDefault("backtest.top_n", 5)
	v.SetDefault("backtest.workers", 0)
	v.SetDefault("backtest.output_path", "output/backtest")
	v.SetDefault("backtest.report_formats", []string{"console"})
	v.SetDefault("backtest.sweep_thresholds", []float64{0.8, 1.0, 1.2, 1.5, 2.0})
	v.SetDefault("backtest.bootstrap_iterations", 0)
	v.SetDefault("backtest.confidence_level", 0.95)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 5)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("secrets.enabled", false)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}
