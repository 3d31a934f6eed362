package monitor

import "errors"

// Domain errors for the monitor.
var (
	// ErrClientRequired is returned by New without a device client.
	ErrClientRequired = errors.New("monitor: device client is required")

	// ErrDeviceIDRequired is returned by New without a device ID.
	ErrDeviceIDRequired = errors.New("monitor: device ID is required")

	// ErrNoSnapshot is returned when no poll has succeeded yet.
	ErrNoSnapshot = errors.New("monitor: no snapshot available")

	// ErrStale is returned by Write while the device only serves cached data.
	ErrStale = errors.New("monitor: snapshot is stale")

	// ErrInvalidCommand is returned for undecodable MQTT commands.
	ErrInvalidCommand = errors.New("monitor: invalid command")
)
