package values

import "errors"

// Read errors. Every decode failure wraps ErrAbsent.
var (
	// ErrAbsent is wrapped by every decode failure.
	ErrAbsent = errors.New("values: value absent")

	// ErrNoRawData is returned when the snapshot has no record for the
	// entry's field key.
	ErrNoRawData = errors.New("values: no raw data for field")

	// ErrMalformed is returned when a raw record does not have the shape
	// the entry's kind requires.
	ErrMalformed = errors.New("values: malformed raw record")

	// ErrUnknownKind is returned for mapping entries whose kind is not known.
	ErrUnknownKind = errors.New("values: unknown kind")
)

// Errors shared by reads and writes.
var (
	// ErrUnknownName is returned when a logical name is not in the mapping.
	ErrUnknownName = errors.New("values: unknown logical name")
)

// Write errors. Every validation failure wraps ErrRejected.
var (
	// ErrRejected is wrapped by every write that fails validation.
	ErrRejected = errors.New("values: write rejected")

	// ErrKindMismatch is returned when the write operation does not match
	// the entry's kind.
	ErrKindMismatch = errors.New("values: kind mismatch")

	// ErrNoCurrentValue is returned when a number cannot be decoded to
	// obtain its bounds.
	ErrNoCurrentValue = errors.New("values: current value unavailable")

	// ErrOutOfRange is returned when a number is outside its bounds.
	ErrOutOfRange = errors.New("values: value out of range")

	// ErrOffStep is returned when a number is not on the step grid.
	ErrOffStep = errors.New("values: value not on step grid")

	// ErrNotNumber is returned when a number write carries a non-numeric value.
	ErrNotNumber = errors.New("values: value is not a number")

	// ErrNotBoolean is returned when a switch write carries a non-boolean value.
	ErrNotBoolean = errors.New("values: value is not a boolean")

	// ErrInvalidOption is returned when a select value is not a valid option.
	ErrInvalidOption = errors.New("values: invalid option")

	// ErrUnresolvedBound is returned when the sibling of a paired bound
	// cannot be determined.
	ErrUnresolvedBound = errors.New("values: paired bound unresolved")
)

// Dispatch errors.
var (
	// ErrNoWriter is returned when a View has no Writer to send writes to.
	ErrNoWriter = errors.New("values: no writer configured")

	// ErrNotAcknowledged is returned when the Writer reports the write
	// was not accepted.
	ErrNotAcknowledged = errors.New("values: write not acknowledged")
)
