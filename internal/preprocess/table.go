// Package preprocess turns raw race observations into the numeric feature table.
package preprocess

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/yourusername/keiba-value/internal/features"
	"github.com/yourusername/keiba-value/internal/models"
)

// ErrMissingValue is returned when a feature matrix is requested before imputation
var ErrMissingValue = errors.New("missing feature value")

// TrainingFeatures are the columns the classifier is fitted on
var TrainingFeatures = []string{
	models.ColPopularity,
	models.ColJockeyWinRate,
	models.ColAge,
	models.ColWeightCarried,
	models.ColHorseWeightVal,
	models.ColHorseWeightChange,
	models.ColWinOdds,
}

// ScoringFeatures excludes the market odds so expected value is not circular
var ScoringFeatures = []string{
	models.ColPopularity,
	models.ColJockeyWinRate,
	models.ColAge,
	models.ColWeightCarried,
	models.ColHorseWeightVal,
	models.ColHorseWeightChange,
}

// TableStats counts what happened to the input while building a table
type TableStats struct {
	Input          int `json:"input"`
	Kept           int `json:"kept"`
	DroppedMissing int `json:"dropped_missing"`
	DroppedOdds    int `json:"dropped_odds"`
}

// BuildTable converts raw observations into feature rows. Rows missing rank,
// popularity, winOdds or horseNumber are dropped, as are rows with winOdds <= 0.
// Jockeys absent from rates get a win rate of 0.
func BuildTable(records []models.RaceObservation, rates map[string]float64) []models.FeatureRow {
	rows, _ := BuildTableWithStats(records, rates)
	return rows
}

// BuildTableWithStats is BuildTable plus drop counters
func BuildTableWithStats(records []models.RaceObservation, rates map[string]float64) ([]models.FeatureRow, TableStats) {
	tableStats := TableStats{Input: len(records)}
	rows := make([]models.FeatureRow, 0, len(records))

	for _, record := range records {
		rank := features.ParseNumber(record.Rank)
		horseNumber := features.ParseNumber(record.HorseNumber)
		popularity := features.ParseNumber(record.Popularity)
		winOdds := features.ParseNumber(record.WinOdds)

		sex, age := features.ParseSexAge(record.SexAndAge)
		weightVal, weightChange := features.ParseHorseWeight(record.HorseWeight)

		if !rank.Valid || !popularity.Valid || !winOdds.Valid || !horseNumber.Valid {
			tableStats.DroppedMissing++
			continue
		}
		if winOdds.Value <= 0 {
			tableStats.DroppedOdds++
			continue
		}

		rankInt := int(rank.Value)
		isWinner := 0
		if rankInt == 1 {
			isWinner = 1
		}
		jockey := record.Jockey.String()

		rows = append(rows, models.FeatureRow{
			RaceID:            record.RaceID,
			HorseNumber:       int(horseNumber.Value),
			HorseName:         record.HorseName.String(),
			Jockey:            jockey,
			Rank:              rankInt,
			Popularity:        popularity.Value,
			WinOdds:           winOdds.Value,
			FrameNumber:       features.ParseNumber(record.FrameNumber),
			WeightCarried:     features.ParseNumber(record.WeightCarried),
			Last3Furlongs:     features.ParseNumber(record.Last3Furlongs),
			PrizeMoney:        features.ParseNumber(record.PrizeMoney),
			Sex:               sex,
			Age:               age,
			HorseWeightVal:    weightVal,
			HorseWeightChange: weightChange,
			TimeSeconds:       features.ParseTime(record.Time),
			JockeyWinRate:     rates[jockey],
			IsWinner:          isWinner,
		})
	}

	tableStats.Kept = len(rows)
	return rows, tableStats
}

// Impute returns a copy of rows where missing values in the given columns are
// replaced by the mean of that column's present values. A column with no
// present values imputes 0.
func Impute(rows []models.FeatureRow, columns []string) ([]models.FeatureRow, error) {
	means, err := ColumnMeans(rows, columns)
	if err != nil {
		return nil, err
	}
	return Fill(rows, means)
}

// Fill returns a copy of rows with missing values replaced from fills
func Fill(rows []models.FeatureRow, fills map[string]float64) ([]models.FeatureRow, error) {
	out := make([]models.FeatureRow, len(rows))
	copy(out, rows)

	for column, fill := range fills {
		for i := range out {
			v, err := out[i].Feature(column)
			if err != nil {
				return nil, err
			}
			if v.Valid {
				continue
			}
			if err := out[i].SetFeature(column, models.Some(fill)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// ColumnMeans returns the mean of the present values per column
func ColumnMeans(rows []models.FeatureRow, columns []string) (map[string]float64, error) {
	means := make(map[string]float64, len(columns))
	for _, column := range columns {
		var present stats.Float64Data
		for _, row := range rows {
			v, err := row.Feature(column)
			if err != nil {
				return nil, err
			}
			if v.Valid {
				present = append(present, v.Value)
			}
		}
		if len(present) == 0 {
			means[column] = 0
			continue
		}
		mean, err := stats.Mean(present)
		if err != nil {
			return nil, fmt.Errorf("failed to compute mean of %s: %w", column, err)
		}
		means[column] = mean
	}
	return means, nil
}

// FeatureMatrix lays out rows as ordered feature vectors
func FeatureMatrix(rows []models.FeatureRow, columns []string) ([][]float64, error) {
	matrix := make([][]float64, len(rows))
	for i, row := range rows {
		vec := make([]float64, len(columns))
		for j, column := range columns {
			v, err := row.Feature(column)
			if err != nil {
				return nil, err
			}
			if !v.Valid {
				return nil, fmt.Errorf("%w: %s in race %s horse %d", ErrMissingValue, column, row.RaceID, row.HorseNumber)
			}
			vec[j] = v.Value
		}
		matrix[i] = vec
	}
	return matrix, nil
}

// Labels returns the isWinner column
func Labels(rows []models.FeatureRow) []float64 {
	labels := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = float64(row.IsWinner)
	}
	return labels
}
