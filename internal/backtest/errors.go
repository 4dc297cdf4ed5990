package backtest

import "errors"

// Backtest errors
var (
	ErrLengthMismatch     = errors.New("prediction count does not match row count")
	ErrInvalidProbability = errors.New("predicted probability outside [0, 1]")
	ErrNoThresholds       = errors.New("no thresholds to sweep")
	ErrUnknownPolicy      = errors.New("unknown betting policy")
)
