// Package datasource reads race result corpora from disk.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/keiba-value/internal/models"
)

const raceFileExt = ".json"

// DirectorySource loads a corpus stored as one JSON array per race
type DirectorySource struct {
	dir    string
	logger *logrus.Logger
}

// NewDirectorySource creates a source rooted at dir
func NewDirectorySource(dir string, logger *logrus.Logger) *DirectorySource {
	if logger == nil {
		logger = logrus.New()
	}
	return &DirectorySource{dir: dir, logger: logger}
}

// Name returns the source name
func (s *DirectorySource) Name() string {
	return "directory:" + s.dir
}

// RaceFiles lists race files in directory order
func (s *DirectorySource) RaceFiles() ([]RaceFile, error) {
	return ListRaceFiles(s.dir)
}

// Load reads every race file in the directory
func (s *DirectorySource) Load(ctx context.Context) ([]models.RaceObservation, LoadStats, error) {
	return loadRaceRecords(ctx, s.dir, s.logger)
}

// ListRaceFiles returns the race files in dir. The race ID is the file name
// without its extension; files with other extensions are ignored.
func ListRaceFiles(dir string) ([]RaceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: corpus directory %s", models.ErrMissingSource, dir)
		}
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	files := make([]RaceFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), raceFileExt) {
			continue
		}
		files = append(files, RaceFile{
			RaceID: strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   filepath.Join(dir, name),
		})
	}
	return files, nil
}

// LoadRaceRecords flattens every race file in dir into one slice of
// observations. A missing directory yields an empty slice and an error
// wrapping models.ErrMissingSource. Malformed files are skipped and logged.
func LoadRaceRecords(dir string, logger *logrus.Logger) ([]models.RaceObservation, LoadStats, error) {
	if logger == nil {
		logger = logrus.New()
	}
	return loadRaceRecords(context.Background(), dir, logger)
}

func loadRaceRecords(ctx context.Context, dir string, logger *logrus.Logger) ([]models.RaceObservation, LoadStats, error) {
	var stats LoadStats
	records := []models.RaceObservation{}

	files, err := ListRaceFiles(dir)
	if err != nil {
		logger.WithError(err).WithField("dir", dir).Error("Failed to list race files")
		return records, stats, err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return records, stats, err
		}

		stats.Files++
		raceRecords, err := readRaceFile(file)
		if err != nil {
			stats.SkippedFiles = append(stats.SkippedFiles, file.Path)
			logger.WithFields(logrus.Fields{
				"race_id": file.RaceID,
				"path":    file.Path,
			}).WithError(err).Warn("Skipping malformed race file")
			continue
		}
		records = append(records, raceRecords...)
	}

	stats.Records = len(records)
	logger.WithFields(logrus.Fields{
		"dir":     dir,
		"files":   stats.Files,
		"records": stats.Records,
		"skipped": len(stats.SkippedFiles),
	}).Info("Loaded race records")

	return records, stats, nil
}

func readRaceFile(file RaceFile) ([]models.RaceObservation, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var raceRecords []models.RaceObservation
	if err := json.Unmarshal(data, &raceRecords); err != nil {
		return nil, fmt.Errorf("failed to decode race file: %w", err)
	}

	for i := range raceRecords {
		raceRecords[i].RaceID = file.RaceID
	}
	return raceRecords, nil
}
