package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-value/internal/features"
	"github.com/yourusername/keiba-value/internal/models"
)

// Field ranges for JRA flat races
const (
	maxFrameNumber = 8
	maxHorseNumber = 18
)

// RaceIssue lists the problems found in one race file
type RaceIssue struct {
	RaceID   string   `json:"race_id"`
	Problems []string `json:"problems"`
}

// DataValidator checks corpus records for anomalies. Problems are reported,
// never fatal: preprocessing already drops rows that cannot be used.
type DataValidator struct {
	logger *logrus.Logger
}

// NewDataValidator creates a new data validator
func NewDataValidator(logger *logrus.Logger) *DataValidator {
	if logger == nil {
		logger = logrus.New()
	}
	return &DataValidator{logger: logger}
}

// ValidateRecord validates a single horse record
func (v *DataValidator) ValidateRecord(record models.RaceObservation) []string {
	var problems []string

	if record.HorseName.String() == "" {
		problems = append(problems, "horse name is missing")
	}
	if record.Jockey.String() == "" {
		problems = append(problems, "jockey is missing")
	}

	horse := features.ParseNumber(record.HorseNumber)
	if !horse.Valid {
		problems = append(problems, fmt.Sprintf("horse number %q is not numeric", record.HorseNumber.String()))
	} else if horse.Value < 1 || horse.Value > maxHorseNumber {
		problems = append(problems, fmt.Sprintf("horse number out of range (1-%d), got %v", maxHorseNumber, horse.Value))
	}

	if frame := features.ParseNumber(record.FrameNumber); frame.Valid && (frame.Value < 1 || frame.Value > maxFrameNumber) {
		problems = append(problems, fmt.Sprintf("frame number out of range (1-%d), got %v", maxFrameNumber, frame.Value))
	}

	if sex, _ := features.ParseSexAge(record.SexAndAge); sex == features.SexUnknown && record.SexAndAge.String() != "" {
		problems = append(problems, fmt.Sprintf("unrecognised sex code in %q", record.SexAndAge.String()))
	}

	return problems
}

// ValidateRace validates the records of one race as a whole
func (v *DataValidator) ValidateRace(records []models.RaceObservation) []string {
	var problems []string
	if len(records) == 0 {
		return []string{"race has no runners"}
	}

	winners := 0
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if record.Rank.String() == "1" {
			winners++
		}
		number := record.HorseNumber.String()
		if number == "" {
			continue
		}
		if seen[number] {
			problems = append(problems, fmt.Sprintf("duplicate horse number %s", number))
		}
		seen[number] = true
	}

	switch {
	case winners == 0:
		problems = append(problems, "no runner ranked 1")
	case winners > 1:
		problems = append(problems, fmt.Sprintf("%d runners ranked 1 (dead heat)", winners))
	}

	return problems
}

// ValidateCorpus validates every race and record. Issues are returned in
// race ID order.
func (v *DataValidator) ValidateCorpus(records []models.RaceObservation) []RaceIssue {
	byRace := make(map[string][]models.RaceObservation)
	for _, record := range records {
		byRace[record.RaceID] = append(byRace[record.RaceID], record)
	}
	ids := make([]string, 0, len(byRace))
	for id := range byRace {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var issues []RaceIssue
	for _, id := range ids {
		race := byRace[id]
		problems := v.ValidateRace(race)
		for _, record := range race {
			for _, p := range v.ValidateRecord(record) {
				problems = append(problems, fmt.Sprintf("horse %s: %s", record.HorseNumber.String(), p))
			}
		}
		if len(problems) == 0 {
			continue
		}
		issues = append(issues, RaceIssue{RaceID: id, Problems: problems})
		v.logger.WithFields(logrus.Fields{
			"race_id":  id,
			"problems": len(problems),
		}).Debug("Race failed validation")
	}
	return issues
}
