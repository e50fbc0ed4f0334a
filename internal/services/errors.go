package services

import "errors"

var (
	// ErrIndexNotFound is returned for an id outside the catalogue
	ErrIndexNotFound = errors.New("index not found")

	// ErrInvalidBasePeriod is returned when base_end precedes base_start
	ErrInvalidBasePeriod = errors.New("base period end precedes start")
)
