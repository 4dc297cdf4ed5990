package datasource

import (
	"context"

	"github.com/yourusername/keiba-value/internal/models"
)

// RaceSource defines the interface for reading a corpus of race results
type RaceSource interface {
	// Load returns every observation in the corpus, stamped with its race ID
	Load(ctx context.Context) ([]models.RaceObservation, LoadStats, error)

	// RaceFiles lists the per-race files making up the corpus
	RaceFiles() ([]RaceFile, error)

	// Name returns the name of the source
	Name() string
}

// RaceFile is one race result file in a corpus directory
type RaceFile struct {
	RaceID string `json:"race_id"`
	Path   string `json:"path"`
}

// LoadStats summarises a corpus load
type LoadStats struct {
	Files        int      `json:"files"`
	Records      int      `json:"records"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
}
