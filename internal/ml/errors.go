package ml

import "errors"

var (
	// ErrModelNotFound indicates the model artifact does not exist
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrInvalidModel indicates a model artifact is inconsistent
	ErrInvalidModel = errors.New("invalid model artifact")

	// ErrInvalidPrediction indicates a probability outside [0, 1] or a count mismatch
	ErrInvalidPrediction = errors.New("invalid prediction")

	// ErrServiceUnavailable indicates the remote scoring service is unreachable
	ErrServiceUnavailable = errors.New("scoring service unavailable")

	// ErrInvalidResponse indicates an invalid response from the scoring service
	ErrInvalidResponse = errors.New("invalid response from scoring service")
)
