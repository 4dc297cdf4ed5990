// Package partition splits a race corpus into disjoint training and evaluation sets.
package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/keiba-value/internal/datasource"
)

// DefaultRatio is the share of races assigned to training
const DefaultRatio = 0.8

var (
	// ErrInvalidRatio is returned for a training ratio outside (0, 1]
	ErrInvalidRatio = errors.New("training ratio must be in (0, 1]")
	// ErrOverlappingDirs is returned when partition directories are equal or nested
	ErrOverlappingDirs = errors.New("partition directories must not overlap")
)

// Options configures a physical partition of a corpus
type Options struct {
	SourceDir     string
	TrainingDir   string
	EvaluationDir string
	Ratio         float64
	// Seed fixes the shuffle; nil draws a random seed which is logged
	Seed *int64
}

// Result describes a completed partition
type Result struct {
	Seed       int64    `json:"seed"`
	Training   []string `json:"training"`
	Evaluation []string `json:"evaluation"`
}

// Total returns the number of races partitioned
func (r Result) Total() int {
	return len(r.Training) + len(r.Evaluation)
}

// Split shuffles raceIDs with the given seed and assigns the first
// floor(n*ratio) to training and the rest to evaluation. The input is sorted
// before shuffling so the result does not depend on directory order.
func Split(raceIDs []string, ratio float64, seed int64) ([]string, []string, error) {
	if ratio <= 0 || ratio > 1 || math.IsNaN(ratio) {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRatio, ratio)
	}

	ids := make([]string, len(raceIDs))
	copy(ids, raceIDs)
	sort.Strings(ids)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	cut := int(math.Floor(float64(len(ids)) * ratio))
	training := append([]string{}, ids[:cut]...)
	evaluation := append([]string{}, ids[cut:]...)
	return training, evaluation, nil
}

// Partitioner materialises training and evaluation copies of a corpus
type Partitioner struct {
	logger *logrus.Logger
}

// NewPartitioner creates a partitioner
func NewPartitioner(logger *logrus.Logger) *Partitioner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Partitioner{logger: logger}
}

// Partition splits the race files in opts.SourceDir and copies them into the
// training and evaluation directories after clearing the race files left there
// by an earlier run. The source directory is left untouched.
func (p *Partitioner) Partition(ctx context.Context, opts Options) (Result, error) {
	if err := validateDirs(opts); err != nil {
		return Result{}, err
	}

	files, err := datasource.ListRaceFiles(opts.SourceDir)
	if err != nil {
		return Result{}, err
	}

	seed := p.resolveSeed(opts.Seed)
	byID := make(map[string]datasource.RaceFile, len(files))
	ids := make([]string, 0, len(files))
	for _, file := range files {
		byID[file.RaceID] = file
		ids = append(ids, file.RaceID)
	}

	training, evaluation, err := Split(ids, opts.Ratio, seed)
	if err != nil {
		return Result{}, err
	}

	if err := p.materialise(ctx, byID, training, opts.TrainingDir); err != nil {
		return Result{}, fmt.Errorf("failed to write training set: %w", err)
	}
	if err := p.materialise(ctx, byID, evaluation, opts.EvaluationDir); err != nil {
		return Result{}, fmt.Errorf("failed to write evaluation set: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"seed":       seed,
		"ratio":      opts.Ratio,
		"total":      len(ids),
		"training":   len(training),
		"evaluation": len(evaluation),
	}).Info("Partitioned race corpus")

	return Result{Seed: seed, Training: training, Evaluation: evaluation}, nil
}

func (p *Partitioner) resolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	drawn := rand.Int63()
	p.logger.WithField("seed", drawn).Info("No partition seed configured, drew a random seed")
	return drawn
}

func (p *Partitioner) materialise(ctx context.Context, byID map[string]datasource.RaceFile, ids []string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := clearRaceFiles(dir); err != nil {
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := byID[id].Path
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return err
		}
	}
	return nil
}

// validateDirs rejects layouts where clearing a target could touch the source
// or the other target: no directory may equal or contain another.
func validateDirs(opts Options) error {
	if opts.SourceDir == "" || opts.TrainingDir == "" || opts.EvaluationDir == "" {
		return errors.New("source, training and evaluation directories are required")
	}
	dirs := map[string]string{
		"source":     opts.SourceDir,
		"training":   opts.TrainingDir,
		"evaluation": opts.EvaluationDir,
	}
	abs := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		resolved, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s directory %s: %w", name, dir, err)
		}
		abs[name] = resolved
	}

	for _, pair := range [][2]string{{"source", "training"}, {"source", "evaluation"}, {"training", "evaluation"}} {
		a, b := abs[pair[0]], abs[pair[1]]
		if within(a, b) || within(b, a) {
			return fmt.Errorf("%w: %s=%s %s=%s", ErrOverlappingDirs, pair[0], dirs[pair[0]], pair[1], dirs[pair[1]])
		}
	}
	return nil
}

// within reports whether path is dir or lies below it
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// clearRaceFiles removes the race files a previous partition left in dir.
// Anything else in dir is kept.
func clearRaceFiles(dir string) error {
	files, err := datasource.ListRaceFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, file := range files {
		if err := os.Remove(file.Path); err != nil {
			return fmt.Errorf("failed to clear %s: %w", file.Path, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
