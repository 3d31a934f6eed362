// Package values decodes a controller's raw instant values into typed
// readings and validates writes before they reach the device.
//
// A fetch of the instant-values endpoint yields a Snapshot: raw field records
// keyed by full device field key. A Codec pairs a snapshot with a
// mapping.Table and the per-connection key prefix and turns logical names into
// Decoded values:
//
//	sensor         SensorValue  (value, unit)
//	binary_sensor  BinaryValue  (bool)
//	switch         SwitchValue  (bool)
//	number         NumberValue  (value, unit, min, max, step)
//	select         SelectValue  (display string)
//
// The same Codec prepares writes. A prepared WireWrite carries the full field
// key, the wire value and its type tag; validation (range, step grid, option
// membership, strict booleans, paired bounds) happens here, before any I/O.
//
// View wraps a Codec with a per-name read cache, the structured projection
// used for bulk consumers, and the write operations that hand a WireWrite to
// a Writer and evict the affected cache entries once the device acknowledges.
//
// # Error policy
//
// Reads never fail loudly: a View accessor returns ok=false for any missing
// mapping, missing raw field, malformed record or unknown kind. Codec.Decode
// exposes the reason as an error wrapping ErrAbsent for callers that want to
// log it. Writes return an error; rejections wrap ErrRejected and leave the
// device and the cache untouched.
//
// # Thread Safety
//
// Codec is immutable and safe for concurrent use. View owns a mutable cache
// and is not safe for concurrent use; callers sharing a View across
// goroutines must serialise access. A View holds no lock while a Writer call
// is in flight.
package values
