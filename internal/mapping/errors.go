package mapping

import "errors"

// Domain errors for the mapping package.
var (
	// ErrMappingNotFound is returned when no mapping file exists for a
	// model and firmware combination.
	ErrMappingNotFound = errors.New("mapping: no mapping for model and firmware")

	// ErrInvalidMapping is returned when a mapping file cannot be parsed.
	ErrInvalidMapping = errors.New("mapping: invalid mapping")

	// ErrInvalidIdentity is returned when the model ID or firmware code is empty.
	ErrInvalidIdentity = errors.New("mapping: model id and firmware code are required")
)
