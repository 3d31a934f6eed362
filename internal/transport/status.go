package transport

import "errors"

// Status is the outcome of a controller request.
type Status string

// Request outcomes.
const (
	StatusSuccess               Status = "SUCCESS"
	StatusHostUnreachable       Status = "HOST_UNREACHABLE"
	StatusParamsFetchFailed     Status = "PARAMS_FETCH_FAILED"
	StatusAPIVersionUnsupported Status = "API_VERSION_UNSUPPORTED"
	StatusNoData                Status = "NO_DATA"
	StatusLastData              Status = "LAST_DATA"
	StatusUnknownError          Status = "UNKNOWN_ERROR"
)

// StatusOf classifies an error returned by this package. A nil error is
// StatusSuccess; unrecognised errors are StatusUnknownError.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrHostUnreachable):
		return StatusHostUnreachable
	case errors.Is(err, ErrParamsFetchFailed):
		return StatusParamsFetchFailed
	case errors.Is(err, ErrAPIVersionUnsupported):
		return StatusAPIVersionUnsupported
	case errors.Is(err, ErrLastData):
		return StatusLastData
	case errors.Is(err, ErrNoData):
		return StatusNoData
	default:
		return StatusUnknownError
	}
}
