package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Optional is a numeric value that may be missing after parsing
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present value
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// Missing returns an absent value
func Missing() Optional {
	return Optional{}
}

// Float returns the value or NaN when missing
func (o Optional) Float() float64 {
	if !o.Valid {
		return math.NaN()
	}
	return o.Value
}

// MarshalJSON encodes a missing value as null
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as missing
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Feature column names
const (
	ColPopularity        = "popularity"
	ColJockeyWinRate     = "jockeyWinRate"
	ColAge               = "age"
	ColSex               = "sex"
	ColWeightCarried     = "weightCarried"
	ColHorseWeightVal    = "horseWeight_val"
	ColHorseWeightChange = "horseWeight_change"
	ColWinOdds           = "winOdds"
	ColFrameNumber       = "frameNumber"
	ColLast3Furlongs     = "last3Furlongs"
	ColPrizeMoney        = "prizeMoney"
	ColTimeSeconds       = "timeSeconds"
)

// FeatureRow is the numeric representation of one cleaned RaceObservation
type FeatureRow struct {
	RaceID            string   `json:"raceId"`
	HorseNumber       int      `json:"horseNumber"`
	HorseName         string   `json:"horseName"`
	Jockey            string   `json:"jockey"`
	Rank              int      `json:"rank"`
	Popularity        float64  `json:"popularity"`
	WinOdds           float64  `json:"winOdds"`
	FrameNumber       Optional `json:"frameNumber"`
	WeightCarried     Optional `json:"weightCarried"`
	Last3Furlongs     Optional `json:"last3Furlongs"`
	PrizeMoney        Optional `json:"prizeMoney"`
	Sex               int      `json:"sex"`
	Age               Optional `json:"age"`
	HorseWeightVal    Optional `json:"horseWeight_val"`
	HorseWeightChange Optional `json:"horseWeight_change"`
	TimeSeconds       Optional `json:"timeSeconds"`
	JockeyWinRate     float64  `json:"jockeyWinRate"`
	IsWinner          int      `json:"isWinner"`
}

// Feature returns a named feature column for the row
func (r FeatureRow) Feature(column string) (Optional, error) {
	switch column {
	case ColPopularity:
		return Some(r.Popularity), nil
	case ColJockeyWinRate:
		return Some(r.JockeyWinRate), nil
	case ColAge:
		return r.Age, nil
	case ColSex:
		return Some(float64(r.Sex)), nil
	case ColWeightCarried:
		return r.WeightCarried, nil
	case ColHorseWeightVal:
		return r.HorseWeightVal, nil
	case ColHorseWeightChange:
		return r.HorseWeightChange, nil
	case ColWinOdds:
		return Some(r.WinOdds), nil
	case ColFrameNumber:
		return r.FrameNumber, nil
	case ColLast3Furlongs:
		return r.Last3Furlongs, nil
	case ColPrizeMoney:
		return r.PrizeMoney, nil
	case ColTimeSeconds:
		return r.TimeSeconds, nil
	default:
		return Optional{}, fmt.Errorf("%w: %s", ErrUnknownFeature, column)
	}
}

// SetFeature overwrites an optional feature column. Columns that are never
// missing are left untouched.
func (r *FeatureRow) SetFeature(column string, value Optional) error {
	switch column {
	case ColAge:
		r.Age = value
	case ColWeightCarried:
		r.WeightCarried = value
	case ColHorseWeightVal:
		r.HorseWeightVal = value
	case ColHorseWeightChange:
		r.HorseWeightChange = value
	case ColFrameNumber:
		r.FrameNumber = value
	case ColLast3Furlongs:
		r.Last3Furlongs = value
	case ColPrizeMoney:
		r.PrizeMoney = value
	case ColTimeSeconds:
		r.TimeSeconds = value
	case ColPopularity, ColJockeyWinRate, ColSex, ColWinOdds:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFeature, column)
	}
	return nil
}

// ScoredRow is a FeatureRow with model output and derived expected value
type ScoredRow struct {
	FeatureRow
	PredictedWinRate  float64 `json:"predicted_win_rate"`
	NormalizedWinRate float64 `json:"normalized_win_rate"`
	ExpectedValue     float64 `json:"expected_value"`
}
