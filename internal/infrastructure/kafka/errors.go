package kafka

import "errors"

var (
	// ErrDisabled indicates Kafka is disabled in config.
	ErrDisabled = errors.New("kafka: disabled in configuration")

	// ErrConnectionFailed indicates no broker could be reached.
	ErrConnectionFailed = errors.New("kafka: connection failed")

	// ErrProduceFailed indicates messages were not acknowledged.
	ErrProduceFailed = errors.New("kafka: produce failed")

	// ErrNotConnected indicates the producer was closed.
	ErrNotConnected = errors.New("kafka: not connected")
)
