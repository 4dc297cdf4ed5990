package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		return nil
	}
	return logEntry
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		environment string
		wantLevel   logrus.Level
		wantJSON    bool
	}{
		{"debug development", "debug", "development", logrus.DebugLevel, false},
		{"warn production", "warn", "production", logrus.WarnLevel, true},
		{"invalid level", "loud", "staging", logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := newLogger(buf, tt.level, tt.environment)

			assert.Equal(t, tt.wantLevel, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestPipelineLoggerBacktest(t *testing.T) {
	log, buf := setupTestLogger()

	NewPipelineLogger(log).LogBacktest("proportional", 1.2, 10, 4, 7, 400, 520, 130)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "pipeline", logEntry["component"])
	assert.Equal(t, "backtest", logEntry["event_type"])
	assert.Equal(t, "proportional", logEntry["policy"])
	assert.Equal(t, 130.0, logEntry["roi"])
	assert.Equal(t, 4.0, logEntry["bet_races"])
}

func TestPipelineLoggerCorpusLoaded(t *testing.T) {
	log, buf := setupTestLogger()

	NewPipelineLogger(log).LogCorpusLoaded("training", "data/training", 12, 150, 1)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "corpus_loaded", logEntry["event_type"])
	assert.Equal(t, 150.0, logEntry["records"])
	assert.Equal(t, "info", logEntry["level"])
}

func TestPipelineLoggerModelTraining(t *testing.T) {
	log, buf := setupTestLogger()

	NewPipelineLogger(log).LogModelTraining("models/m.json", 200, 0.91, 0.23, 1500*time.Millisecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "models/m.json", logEntry["model_path"])
	assert.Equal(t, "1.5s", logEntry["duration"])
}

func TestPipelineLoggerPartition(t *testing.T) {
	log, buf := setupTestLogger()

	NewPipelineLogger(log).LogPartition(42, 0.8, 8, 2)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, 42.0, logEntry["seed"])
	assert.Equal(t, 2.0, logEntry["evaluation"])
}
