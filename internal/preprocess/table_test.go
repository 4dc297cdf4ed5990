package preprocess

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/keiba-value/internal/features"
	"github.com/yourusername/keiba-value/internal/models"
)

func observation(raceID, horseNumber, rank, odds string) models.RaceObservation {
	return models.RaceObservation{
		RaceID:        raceID,
		Rank:          models.RawString(rank),
		FrameNumber:   "3",
		HorseNumber:   models.RawString(horseNumber),
		HorseName:     "Horse " + models.RawString(horseNumber),
		SexAndAge:     "牡4",
		WeightCarried: "57.0",
		Jockey:        "Lemaire",
		Time:          "1:34.5",
		Last3Furlongs: "34.1",
		WinOdds:       models.RawString(odds),
		Popularity:    "2",
		HorseWeight:   "480(+4)",
		PrizeMoney:    "1,500.0",
	}
}

func sampleRecords() []models.RaceObservation {
	records := []models.RaceObservation{
		observation("r1", "1", "1", "3.0"),
		observation("r1", "2", "2", "0"),
		observation("r1", "3", "3", "-1.5"),
		observation("r1", "4", "4", "12.4"),
		observation("r2", "1", "中止", "5.0"),
		observation("r2", "2", "1", ""),
		observation("r2", "3", "2", "7.1"),
		observation("r2", "", "3", "7.1"),
	}
	records[3].SexAndAge = "牝"
	records[3].HorseWeight = "計不"
	records[6].Popularity = "--"
	return records
}

func TestBuildTableDropsInvalidRows(t *testing.T) {
	rows, stats := BuildTableWithStats(sampleRecords(), map[string]float64{"Lemaire": 0.25})

	require.Len(t, rows, 2)
	assert.Equal(t, 8, stats.Input)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 2, stats.DroppedOdds)
	assert.Equal(t, 4, stats.DroppedMissing)

	first := rows[0]
	assert.Equal(t, "r1", first.RaceID)
	assert.Equal(t, 1, first.HorseNumber)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 1, first.IsWinner)
	assert.Equal(t, features.SexMale, first.Sex)
	assert.Equal(t, models.Some(4), first.Age)
	assert.Equal(t, models.Some(480), first.HorseWeightVal)
	assert.Equal(t, models.Some(4), first.HorseWeightChange)
	assert.Equal(t, models.Some(1500), first.PrizeMoney)
	assert.InDelta(t, 94.5, first.TimeSeconds.Value, 1e-9)
	assert.Equal(t, 0.25, first.JockeyWinRate)

	second := rows[1]
	assert.Equal(t, 0, second.IsWinner)
	assert.Equal(t, features.SexFemale, second.Sex)
	assert.False(t, second.Age.Valid)
	assert.False(t, second.HorseWeightVal.Valid)
}

func TestBuildTableOddsFilter(t *testing.T) {
	rows := BuildTable(sampleRecords(), nil)
	for _, row := range rows {
		assert.Greater(t, row.WinOdds, 0.0)
	}
}

func TestBuildTableUnknownJockey(t *testing.T) {
	records := []models.RaceObservation{observation("r1", "1", "1", "2.0")}
	records[0].Jockey = "Newcomer"

	rows := BuildTable(records, map[string]float64{"Lemaire": 0.3})
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].JockeyWinRate)
}

func TestBuildTableEmpty(t *testing.T) {
	rows := BuildTable(nil, nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestBuildTableIdempotent(t *testing.T) {
	records := sampleRecords()
	rates := features.JockeyWinRates(records, 1)

	first, err := json.Marshal(BuildTable(records, rates))
	require.NoError(t, err)
	second, err := json.Marshal(BuildTable(records, rates))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImpute(t *testing.T) {
	rows := []models.FeatureRow{
		{RaceID: "r1", HorseNumber: 1, Age: models.Some(3), WeightCarried: models.Some(55)},
		{RaceID: "r1", HorseNumber: 2, Age: models.Some(5)},
		{RaceID: "r1", HorseNumber: 3},
	}

	imputed, err := Impute(rows, ScoringFeatures)
	require.NoError(t, err)

	assert.Equal(t, models.Some(4), imputed[2].Age)
	assert.Equal(t, models.Some(55), imputed[1].WeightCarried)
	assert.Equal(t, models.Some(0), imputed[0].HorseWeightVal, "column with no values imputes zero")
	assert.False(t, rows[2].Age.Valid, "input rows are not mutated")

	matrix, err := FeatureMatrix(imputed, ScoringFeatures)
	require.NoError(t, err)
	require.Len(t, matrix, 3)
	for _, vec := range matrix {
		require.Len(t, vec, len(ScoringFeatures))
		for _, v := range vec {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestFeatureMatrixRequiresImputation(t *testing.T) {
	rows := []models.FeatureRow{{RaceID: "r1", HorseNumber: 1}}

	_, err := FeatureMatrix(rows, []string{models.ColAge})
	assert.True(t, errors.Is(err, ErrMissingValue))

	_, err = FeatureMatrix(rows, []string{"bogus"})
	assert.True(t, errors.Is(err, models.ErrUnknownFeature))
}

func TestFeatureMatrixOrder(t *testing.T) {
	rows := []models.FeatureRow{{Popularity: 2, WinOdds: 3.5, JockeyWinRate: 0.1}}

	matrix, err := FeatureMatrix(rows, []string{models.ColWinOdds, models.ColPopularity, models.ColJockeyWinRate})
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, 2, 0.1}, matrix[0])
	assert.Equal(t, []float64{0}, Labels(rows))
}
