package features

import (
	"fmt"
	"sort"

	"github.com/yourusername/keiba-value/internal/models"
)

// DefaultMinRides is the ride count below which a jockey's win rate is floored to zero
const DefaultMinRides = 20

// winningRank is compared against the raw rank string, before numeric coercion
const winningRank = "1"

// JockeyRateSource selects which corpus the evaluation table takes jockey rates from
type JockeyRateSource string

const (
	// RateSourceInSample computes rates on the corpus being processed
	RateSourceInSample JockeyRateSource = "in_sample"
	// RateSourceTraining applies rates computed on the training corpus
	RateSourceTraining JockeyRateSource = "training"
)

// ParseJockeyRateSource validates a configured rate source
func ParseJockeyRateSource(s string) (JockeyRateSource, error) {
	switch JockeyRateSource(s) {
	case "", RateSourceInSample:
		return RateSourceInSample, nil
	case RateSourceTraining:
		return RateSourceTraining, nil
	default:
		return "", fmt.Errorf("unknown jockey rate source %q", s)
	}
}

// JockeyStats accumulates rides, wins and the floored win rate per jockey.
// Records without a jockey are skipped.
func JockeyStats(records []models.RaceObservation, minRides int) map[string]models.JockeyStatistic {
	stats := make(map[string]models.JockeyStatistic)
	for _, record := range records {
		jockey := record.Jockey.String()
		if jockey == "" {
			continue
		}
		stat := stats[jockey]
		stat.Jockey = jockey
		stat.Rides++
		if string(record.Rank) == winningRank {
			stat.Wins++
		}
		stats[jockey] = stat
	}

	for jockey, stat := range stats {
		stat.WinRate = winRate(stat.Wins, stat.Rides, minRides)
		stats[jockey] = stat
	}
	return stats
}

// JockeyWinRates returns jockey -> win rate. Jockeys with fewer than minRides
// rides get exactly 0.0.
func JockeyWinRates(records []models.RaceObservation, minRides int) map[string]float64 {
	stats := JockeyStats(records, minRides)
	rates := make(map[string]float64, len(stats))
	for jockey, stat := range stats {
		rates[jockey] = stat.WinRate
	}
	return rates
}

// TopJockeys returns up to n statistics ordered by win rate, then rides, then name
func TopJockeys(stats map[string]models.JockeyStatistic, n int) []models.JockeyStatistic {
	list := make([]models.JockeyStatistic, 0, len(stats))
	for _, stat := range stats {
		list = append(list, stat)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].WinRate != list[j].WinRate {
			return list[i].WinRate > list[j].WinRate
		}
		if list[i].Rides != list[j].Rides {
			return list[i].Rides > list[j].Rides
		}
		return list[i].Jockey < list[j].Jockey
	})
	if n >= 0 && n < len(list) {
		list = list[:n]
	}
	return list
}

func winRate(wins, rides, minRides int) float64 {
	if rides == 0 || rides < minRides {
		return 0.0
	}
	return float64(wins) / float64(rides)
}
