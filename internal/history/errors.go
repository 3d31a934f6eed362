package history

import "errors"

var (
	// ErrDeviceIDRequired is returned when a query or insert has no device ID.
	ErrDeviceIDRequired = errors.New("history: device id is required")

	// ErrNameRequired is returned when a query has no logical value name.
	ErrNameRequired = errors.New("history: value name is required")

	// ErrInvalidOutcome is returned for write records with an unknown outcome.
	ErrInvalidOutcome = errors.New("history: invalid outcome")
)
