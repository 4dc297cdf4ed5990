package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawString holds a scraped field exactly as it appeared in the corpus.
// Numeric JSON values are accepted and kept in their literal form.
type RawString string

// UnmarshalJSON accepts strings, numbers and null
func (s *RawString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = RawString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("unsupported raw value %s", string(data))
	}
	*s = RawString(num.String())
	return nil
}

// String returns the trimmed raw value
func (s RawString) String() string {
	return strings.TrimSpace(string(s))
}

// RaceObservation is one horse's result in one race as read from the corpus.
// RaceID is stamped by the loader from the file name.
type RaceObservation struct {
	RaceID        string    `json:"raceId"`
	Rank          RawString `json:"rank"`
	FrameNumber   RawString `json:"frameNumber"`
	HorseNumber   RawString `json:"horseNumber"`
	HorseName     RawString `json:"horseName"`
	SexAndAge     RawString `json:"sexAndAge"`
	WeightCarried RawString `json:"weightCarried"`
	Jockey        RawString `json:"jockey"`
	Time          RawString `json:"time"`
	Margin        RawString `json:"margin"`
	PassingOrder  RawString `json:"passingOrder"`
	Last3Furlongs RawString `json:"last3Furlongs"`
	WinOdds       RawString `json:"winOdds"`
	Popularity    RawString `json:"popularity"`
	HorseWeight   RawString `json:"horseWeight"`
	Trainer       RawString `json:"trainer"`
	Owner         RawString `json:"owner"`
	PrizeMoney    RawString `json:"prizeMoney"`
}

// JockeyStatistic aggregates rides and wins for one jockey over a corpus snapshot
type JockeyStatistic struct {
	Jockey  string  `json:"jockey"`
	Rides   int     `json:"rides"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}
