package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrHostUnreachable is returned when the controller does not accept
	// TCP connections on the configured port.
	ErrHostUnreachable = errors.New("transport: host unreachable")

	// ErrParamsFetchFailed is returned when params.js cannot be fetched.
	ErrParamsFetchFailed = errors.New("transport: params fetch failed")

	// ErrAPIVersionUnsupported is returned when the controller reports an
	// API version other than the supported one.
	ErrAPIVersionUnsupported = errors.New("transport: api version unsupported")

	// ErrNoData is returned when an endpoint answers with an empty document.
	ErrNoData = errors.New("transport: no data")

	// ErrLastData is returned together with the previous instant-values
	// response when a fetch fails.
	ErrLastData = errors.New("transport: using last data")

	// ErrRequestFailed is returned for network errors, non-2xx responses
	// and undecodable bodies.
	ErrRequestFailed = errors.New("transport: request failed")

	// ErrInvalidOptions is returned when client options are incomplete.
	ErrInvalidOptions = errors.New("transport: invalid options")
)
