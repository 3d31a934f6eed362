// Package kafka emits controller change events to a Kafka topic.
//
// Each changed value of a poll becomes one message keyed by
// "<device_id>/<name>" so a compacted topic keeps the latest value per
// name. Write outcomes are emitted with the same key and an event type of
// "write".
package kafka
