// Package monitor runs the poll loop and the write path of one PoolDose
// controller.
//
// Every poll fetches instant values through the device client, builds the
// structured snapshot and compares it with the previous one. The result is
// delivered to the configured sinks:
//
//	Sink          Publish                       Observes
//	influxdb      every value, every poll       write outcomes
//	history       changed values                write audit, prune
//	valkey        snapshot + changed values     health
//	kafka         one event per changed value   write outcomes
//	mqtt          retained state per value      health
//
// Only fresh data is delivered. When the controller serves cached data or
// does not answer, the health report changes and writes are refused until
// the next fresh poll.
//
// # MQTT commands
//
// With an MQTT client configured the monitor subscribes to
// pooldose/command/{device_id}/+ and acknowledges every command on
// pooldose/ack/{device_id}/{name}:
//
//	{"id": "c1", "value": 7.2}
//	{"command_id": "c1", "status": "accepted", ...}
//	{"command_id": "c2", "status": "rejected", "error": {"code": "OUT_OF_RANGE", ...}}
//
// Writes from the API and from MQTT both go through Monitor.Write, which
// serializes them against the current view.
package monitor
