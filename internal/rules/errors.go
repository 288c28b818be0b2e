package rules

import "errors"

var (
	// ErrMissingType is returned when an add request has no criterion type
	ErrMissingType = errors.New("criterion type is required")

	// ErrUnknownType is returned for a type outside the three known categories
	ErrUnknownType = errors.New("unknown criterion type")

	// ErrCriterionNotFound is returned when a criterion id does not exist
	ErrCriterionNotFound = errors.New("criterion not found")
)
