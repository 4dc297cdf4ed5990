// Package features derives engineered statistics and parses composite race fields.
package features

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yourusername/keiba-value/internal/models"
)

// Sex codes
const (
	SexFemale  = 0
	SexMale    = 1
	SexGelding = 2
	SexUnknown = -1
)

var horseWeightPattern = regexp.MustCompile(`^(\d+)\(([+-]?\d+)\)$`)

var sexCodes = map[rune]int{
	'牝': SexFemale,
	'牡': SexMale,
	'セ': SexGelding,
	'F':  SexFemale,
	'M':  SexMale,
	'G':  SexGelding,
}

// ParseNumber coerces a raw field to a number. Thousands separators are
// accepted; anything else that does not parse is missing.
func ParseNumber(raw models.RawString) models.Optional {
	s := strings.ReplaceAll(raw.String(), ",", "")
	if s == "" {
		return models.Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Missing()
	}
	return models.Some(v)
}

// ParseSexAge splits a combined sex-age field such as "牡3" into a sex code
// and an age. The sex code is SexUnknown when the first character is not
// recognised.
func ParseSexAge(raw models.RawString) (int, models.Optional) {
	s := raw.String()
	if s == "" {
		return SexUnknown, models.Missing()
	}
	first, size := utf8.DecodeRuneInString(s)
	sex, ok := sexCodes[first]
	if !ok {
		sex = SexUnknown
	}
	return sex, ParseNumber(models.RawString(s[size:]))
}

// ParseHorseWeight parses "480(+4)" into the body weight and its signed change
func ParseHorseWeight(raw models.RawString) (models.Optional, models.Optional) {
	match := horseWeightPattern.FindStringSubmatch(raw.String())
	if match == nil {
		return models.Missing(), models.Missing()
	}
	val, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return models.Missing(), models.Missing()
	}
	change, err := strconv.ParseFloat(strings.TrimPrefix(match[2], "+"), 64)
	if err != nil {
		return models.Some(val), models.Missing()
	}
	return models.Some(val), models.Some(change)
}

// ParseTime converts "m:ss.s" or plain seconds into elapsed seconds
func ParseTime(raw models.RawString) models.Optional {
	s := raw.String()
	if s == "" {
		return models.Missing()
	}
	minutes, seconds, found := strings.Cut(s, ":")
	if !found {
		return ParseNumber(raw)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return models.Missing()
	}
	sec := ParseNumber(models.RawString(seconds))
	if !sec.Valid || sec.Value < 0 {
		return models.Missing()
	}
	return models.Some(float64(m)*60 + sec.Value)
}
