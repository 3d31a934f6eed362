package valkey

import "errors"

var (
	// ErrDisabled indicates the cache is disabled in config.
	ErrDisabled = errors.New("valkey: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("valkey: connection failed")

	// ErrNotConnected indicates the client was closed.
	ErrNotConnected = errors.New("valkey: not connected")
)
