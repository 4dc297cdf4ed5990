package models

import "errors"

// Custom errors
var (
	ErrMissingSource  = errors.New("source not found")
	ErrEmptyResult    = errors.New("no data")
	ErrUnknownFeature = errors.New("unknown feature column")
	ErrNotFound       = errors.New("record not found")
)
