package monitor

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/transport"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// CommandMessage requests a write of one value.
// Topic: pooldose/command/{device_id}/{name}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID string `json:"id"`

	// Value is the requested value: a number, a bool or a select option.
	Value json.RawMessage `json:"value"`

	// Source names the requester. Defaults to "mqtt".
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	// AckAccepted means the device acknowledged the write.
	AckAccepted AckStatus = "accepted"

	// AckRejected means validation refused the write before it was sent.
	AckRejected AckStatus = "rejected"

	// AckFailed means the write was sent but not acknowledged, or could
	// not be sent at all.
	AckFailed AckStatus = "failed"
)

// AckMessage reports the outcome of a command.
// Topic: pooldose/ack/{device_id}/{name}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AckError describes why a command was not accepted.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for AckError.
const (
	ErrCodeInvalidCommand  = "INVALID_COMMAND"
	ErrCodeUnknownName     = "UNKNOWN_NAME"
	ErrCodeNotWritable     = "NOT_WRITABLE"
	ErrCodeOutOfRange      = "OUT_OF_RANGE"
	ErrCodeOffStep         = "OFF_STEP"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeNoCurrentValue  = "NO_CURRENT_VALUE"
	ErrCodeUnavailable     = "DEVICE_UNAVAILABLE"
	ErrCodeNotAcknowledged = "NOT_ACKNOWLEDGED"
	ErrCodeDeviceError     = "DEVICE_ERROR"
)

// newAck builds the acknowledgement for the result of a write.
func newAck(cmd CommandMessage, deviceID, name string, err error) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		DeviceID:  deviceID,
		Name:      name,
		Status:    AckAccepted,
		Timestamp: time.Now().UTC(),
	}
	if err == nil {
		return ack
	}

	ack.Status = AckFailed
	if errors.Is(err, values.ErrRejected) || errors.Is(err, ErrInvalidCommand) {
		ack.Status = AckRejected
	}
	ack.Error = &AckError{Code: ErrorCode(err), Message: err.Error()}
	return ack
}

// ErrorCode maps a write error to a stable code for acknowledgements and
// API responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, values.ErrUnknownName):
		return ErrCodeUnknownName
	case errors.Is(err, values.ErrKindMismatch):
		return ErrCodeNotWritable
	case errors.Is(err, values.ErrOutOfRange):
		return ErrCodeOutOfRange
	case errors.Is(err, values.ErrOffStep):
		return ErrCodeOffStep
	case errors.Is(err, values.ErrNotNumber),
		errors.Is(err, values.ErrNotBoolean),
		errors.Is(err, values.ErrInvalidOption):
		return ErrCodeInvalidValue
	case errors.Is(err, values.ErrNoCurrentValue), errors.Is(err, values.ErrUnresolvedBound):
		return ErrCodeNoCurrentValue
	case errors.Is(err, ErrNoSnapshot), errors.Is(err, ErrStale):
		return ErrCodeUnavailable
	case errors.Is(err, values.ErrNotAcknowledged):
		return ErrCodeNotAcknowledged
	default:
		return ErrCodeDeviceError
	}
}

// StateMessage is the retained state of one value.
// Topic: pooldose/state/{device_id}/{name}
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Name      string         `json:"name"`
	Kind      mapping.Kind   `json:"kind"`
	Value     values.Decoded `json:"value"`
	Timestamp time.Time      `json:"timestamp"`
}

// SnapshotMessage is the retained structured snapshot of a device.
// Topic: pooldose/state/{device_id}
type SnapshotMessage struct {
	DeviceID  string                    `json:"device_id"`
	Values    values.StructuredSnapshot `json:"values"`
	Timestamp time.Time                 `json:"timestamp"`
}

// HealthStatus is the reachability of the device as seen by the monitor.
type HealthStatus string

const (
	// HealthOnline means the last poll returned fresh data.
	HealthOnline HealthStatus = "online"

	// HealthDegraded means the device only serves cached data.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline means the last poll returned nothing.
	HealthOffline HealthStatus = "offline"
)

// Health is a device reachability report.
// Topic: pooldose/health/{device_id}
type Health struct {
	DeviceID   string           `json:"device_id"`
	Status     HealthStatus     `json:"status"`
	PollStatus transport.Status `json:"poll_status"`
	Reason     string           `json:"reason,omitempty"`
	LastPoll   time.Time        `json:"last_poll,omitzero"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Online reports whether the device served fresh data.
func (h Health) Online() bool {
	return h.Status == HealthOnline
}
