package partition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/keiba-value/internal/models"
)

func raceIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("2024%08d", i)
	}
	return ids
}

func TestSplitCompleteness(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 10, 101} {
		for _, ratio := range []float64{0.1, 0.5, 0.8, 0.99, 1.0} {
			t.Run(fmt.Sprintf("n=%d/r=%.2f", n, ratio), func(t *testing.T) {
				ids := raceIDs(n)
				training, evaluation, err := Split(ids, ratio, 42)
				require.NoError(t, err)

				assert.Equal(t, n, len(training)+len(evaluation))
				assert.Equal(t, int(float64(n)*ratio), len(training))

				seen := make(map[string]bool, n)
				for _, id := range training {
					seen[id] = true
				}
				for _, id := range evaluation {
					assert.False(t, seen[id], "race %s in both sets", id)
					seen[id] = true
				}
				assert.Len(t, seen, n)
			})
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	ids := raceIDs(50)
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}

	trainA, evalA, err := Split(ids, 0.8, 7)
	require.NoError(t, err)
	trainB, evalB, err := Split(reversed, 0.8, 7)
	require.NoError(t, err)

	assert.Equal(t, trainA, trainB)
	assert.Equal(t, evalA, evalB)

	trainC, _, err := Split(ids, 0.8, 8)
	require.NoError(t, err)
	assert.NotEqual(t, trainA, trainC)
}

func TestSplitInvalidRatio(t *testing.T) {
	for _, ratio := range []float64{0, -0.2, 1.01} {
		_, _, err := Split(raceIDs(3), ratio, 1)
		assert.True(t, errors.Is(err, ErrInvalidRatio), "ratio %v", ratio)
	}
}

func TestPartition(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(source, 0o755))
	for _, id := range raceIDs(10) {
		require.NoError(t, os.WriteFile(filepath.Join(source, id+".json"), []byte(`[]`), 0o644))
	}

	training := filepath.Join(root, "training")
	evaluation := filepath.Join(root, "untouched")
	require.NoError(t, os.MkdirAll(training, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(training, "stale.json"), []byte(`[]`), 0o644))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	seed := int64(42)

	result, err := NewPartitioner(logger).Partition(context.Background(), Options{
		SourceDir:     source,
		TrainingDir:   training,
		EvaluationDir: evaluation,
		Ratio:         0.8,
		Seed:          &seed,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), result.Seed)
	assert.Len(t, result.Training, 8)
	assert.Len(t, result.Evaluation, 2)
	assert.Equal(t, 10, result.Total())

	trainFiles, err := os.ReadDir(training)
	require.NoError(t, err)
	assert.Len(t, trainFiles, 8, "stale files are cleared")

	evalFiles, err := os.ReadDir(evaluation)
	require.NoError(t, err)
	assert.Len(t, evalFiles, 2)

	sourceFiles, err := os.ReadDir(source)
	require.NoError(t, err)
	assert.Len(t, sourceFiles, 10)
}

func TestPartitionRandomSeed(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "a.json"), []byte(`[]`), 0o644))

	result, err := NewPartitioner(nil).Partition(context.Background(), Options{
		SourceDir:     source,
		TrainingDir:   filepath.Join(root, "t"),
		EvaluationDir: filepath.Join(root, "e"),
		Ratio:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Training)
	assert.Empty(t, result.Evaluation)
}

func TestPartitionErrors(t *testing.T) {
	root := t.TempDir()

	_, err := NewPartitioner(nil).Partition(context.Background(), Options{
		SourceDir:     filepath.Join(root, "absent"),
		TrainingDir:   filepath.Join(root, "t"),
		EvaluationDir: filepath.Join(root, "e"),
		Ratio:         0.8,
	})
	assert.True(t, errors.Is(err, models.ErrMissingSource))

	_, err = NewPartitioner(nil).Partition(context.Background(), Options{
		SourceDir:     root,
		TrainingDir:   root,
		EvaluationDir: filepath.Join(root, "e"),
		Ratio:         0.8,
	})
	assert.Error(t, err)
}

func TestPartitionRejectsOverlappingDirs(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	source := filepath.Join(data, "raw")
	require.NoError(t, os.MkdirAll(source, 0o755))
	for _, id := range raceIDs(4) {
		require.NoError(t, os.WriteFile(filepath.Join(source, id+".json"), []byte(`[]`), 0o644))
	}

	tests := []struct {
		name       string
		training   string
		evaluation string
	}{
		{"training is parent of source", data, filepath.Join(root, "eval")},
		{"evaluation is ancestor of source", filepath.Join(root, "train"), root},
		{"training equals source", source, filepath.Join(root, "eval")},
		{"evaluation inside training", filepath.Join(root, "train"), filepath.Join(root, "train", "eval")},
		{"training inside source", filepath.Join(source, "train"), filepath.Join(root, "eval")},
		{"relative path to source parent", filepath.Join(source, ".."), filepath.Join(root, "eval")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := int64(7)
			_, err := NewPartitioner(nil).Partition(context.Background(), Options{
				SourceDir:     source,
				TrainingDir:   tt.training,
				EvaluationDir: tt.evaluation,
				Ratio:         0.5,
				Seed:          &seed,
			})
			assert.True(t, errors.Is(err, ErrOverlappingDirs), "got %v", err)

			sourceFiles, err := os.ReadDir(source)
			require.NoError(t, err)
			assert.Len(t, sourceFiles, 4)
		})
	}
}

func TestPartitionKeepsNonRaceFiles(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "raw")
	training := filepath.Join(root, "training")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.MkdirAll(training, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "r1.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(training, "old.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(training, "README.md"), []byte("notes"), 0o644))

	seed := int64(1)
	_, err := NewPartitioner(nil).Partition(context.Background(), Options{
		SourceDir:     source,
		TrainingDir:   training,
		EvaluationDir: filepath.Join(root, "eval"),
		Ratio:         1,
		Seed:          &seed,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(training, "old.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(training, "README.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(training, "r1.json"))
	assert.NoError(t, err)
}
