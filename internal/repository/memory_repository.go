package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/keiba-value/internal/models"
)

// MemoryBacktestRunRepository keeps run history in process. It backs runs
// with the database disabled and tests.
type MemoryBacktestRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.BacktestRun
}

// NewMemoryBacktestRunRepository creates an empty in-memory repository
func NewMemoryBacktestRunRepository() *MemoryBacktestRunRepository {
	return &MemoryBacktestRunRepository{runs: make(map[uuid.UUID]*models.BacktestRun)}
}

// Create stores a copy of the run
func (r *MemoryBacktestRunRepository) Create(_ context.Context, run *models.BacktestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

// GetByID retrieves a run by ID
func (r *MemoryBacktestRunRepository) GetByID(_ context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *run
	return &out, nil
}

// GetLatest returns up to limit runs, newest first
func (r *MemoryBacktestRunRepository) GetLatest(_ context.Context, limit int) ([]*models.BacktestRun, error) {
	return r.filter(func(*models.BacktestRun) bool { return true }, limit), nil
}

// GetByPolicy returns up to limit runs for a policy, newest first
func (r *MemoryBacktestRunRepository) GetByPolicy(_ context.Context, policy string, limit int) ([]*models.BacktestRun, error) {
	return r.filter(func(run *models.BacktestRun) bool { return run.Policy == policy }, limit), nil
}

func (r *MemoryBacktestRunRepository) filter(keep func(*models.BacktestRun) bool, limit int) []*models.BacktestRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*models.BacktestRun
	for _, run := range r.runs {
		if keep(run) {
			out := *run
			runs = append(runs, &out)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunDate.After(runs[j].RunDate) })
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs
}
