// Package valkey caches the latest controller values in Valkey (or any
// Redis-protocol server) for other services.
//
// Keys, with the configured prefix:
//
//	<prefix>:<device_id>:snapshot         structured snapshot of the last poll
//	<prefix>:<device_id>:values:<name>    one decoded value
//	<prefix>:<device_id>:health           poll health
//
// Changed values are also published on the <prefix>:<device_id>:changes
// channel.
package valkey
