package pooldose

import "errors"

// Domain errors for the pooldose package.
var (
	// ErrNotConnected is returned by operations that need a completed Connect.
	ErrNotConnected = errors.New("pooldose: not connected")

	// ErrNoDevice is returned when the debug config lists no dosing unit.
	ErrNoDevice = errors.New("pooldose: no device in debug config")
)
