package values

import (
	"context"
	"fmt"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

// Writer sends a validated write to a device. It reports whether the
// device acknowledged the write. Both the HTTP transport and the file-backed
// mock implement it.
type Writer interface {
	SetValue(ctx context.Context, deviceID, key string, value any, tag ValueType) (bool, error)
}

// Logger is the logging interface used by View.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// View is a read-through cache over one snapshot with typed writes.
//
// The first read of a name decodes it and caches the result; later reads
// return the cached value until a write of that name is acknowledged. The
// raw snapshot is never modified: after a write the next read of the name
// decodes the snapshot again, so callers fetch a new snapshot to observe
// the device's post-write state.
type View struct {
	codec    *Codec
	deviceID string
	writer   Writer
	logger   Logger

	cache   map[string]Decoded
	decodes int
}

// NewView creates a view. writer may be nil for read-only use.
func NewView(table *mapping.Table, prefix, deviceID string, snapshot Snapshot, writer Writer) *View {
	return &View{
		codec:    NewCodec(table, prefix, snapshot),
		deviceID: deviceID,
		writer:   writer,
		cache:    make(map[string]Decoded),
	}
}

// SetLogger sets the logger for absent reads and rejected writes.
func (v *View) SetLogger(logger Logger) {
	v.logger = logger
}

// Codec returns the underlying codec.
func (v *View) Codec() *Codec {
	return v.codec
}

// DeviceID returns the device the snapshot belongs to.
func (v *View) DeviceID() string {
	return v.deviceID
}

// Get returns the decoded value of a logical name.
func (v *View) Get(name string) (Decoded, bool) {
	if d, ok := v.cache[name]; ok {
		return d, true
	}

	v.decodes++
	d, err := v.codec.Decode(name)
	if err != nil {
		v.logDebug("value absent", "name", name, "reason", err)
		return nil, false
	}
	v.cache[name] = d
	return d, true
}

// Sensor returns a sensor reading.
func (v *View) Sensor(name string) (SensorValue, bool) {
	d, ok := v.Get(name)
	if !ok {
		return SensorValue{}, false
	}
	s, ok := d.(SensorValue)
	return s, ok
}

// BinarySensor returns a binary sensor state.
func (v *View) BinarySensor(name string) (bool, bool) {
	d, ok := v.Get(name)
	if !ok {
		return false, false
	}
	b, ok := d.(BinaryValue)
	return b.Value, ok
}

// Switch returns a switch state.
func (v *View) Switch(name string) (bool, bool) {
	d, ok := v.Get(name)
	if !ok {
		return false, false
	}
	s, ok := d.(SwitchValue)
	return s.Value, ok
}

// Number returns a setpoint with its envelope.
func (v *View) Number(name string) (NumberValue, bool) {
	d, ok := v.Get(name)
	if !ok {
		return NumberValue{}, false
	}
	n, ok := d.(NumberValue)
	return n, ok
}

// Select returns a select's display string.
func (v *View) Select(name string) (string, bool) {
	d, ok := v.Get(name)
	if !ok {
		return "", false
	}
	s, ok := d.(SelectValue)
	return s.Value, ok
}

// Contains reports whether name is mapped and has a raw record in the
// snapshot. A contained name may still decode to nothing.
func (v *View) Contains(name string) bool {
	_, ok := v.codec.Raw(name)
	return ok
}

// Structured decodes every mapped value, grouped by kind. Absent values are
// omitted. The projection is rebuilt on every call and does not touch the
// read cache.
func (v *View) Structured() StructuredSnapshot {
	out := StructuredSnapshot{}
	for _, name := range v.codec.Table().Names() {
		d, err := v.codec.Decode(name)
		if err != nil {
			continue
		}
		out.add(name, d)
	}
	return out
}

// SetNumber writes a setpoint.
func (v *View) SetNumber(ctx context.Context, name string, value float64) error {
	w, err := v.codec.PrepareNumber(name, value)
	if err != nil {
		v.logWarn("number write rejected", "name", name, "value", value, "error", err)
		return err
	}
	return v.dispatch(ctx, w)
}

// SetSwitch writes a switch state.
func (v *View) SetSwitch(ctx context.Context, name string, on bool) error {
	w, err := v.codec.PrepareSwitch(name, on)
	if err != nil {
		v.logWarn("switch write rejected", "name", name, "value", on, "error", err)
		return err
	}
	return v.dispatch(ctx, w)
}

// SetSelect writes a select by display value.
func (v *View) SetSelect(ctx context.Context, name, value string) error {
	w, err := v.codec.PrepareSelect(name, value)
	if err != nil {
		v.logWarn("select write rejected", "name", name, "value", value, "error", err)
		return err
	}
	return v.dispatch(ctx, w)
}

// Set writes a dynamically typed value, choosing the operation from the
// entry's kind. It is the entry point for values decoded from JSON.
func (v *View) Set(ctx context.Context, name string, value any) error {
	w, err := v.codec.Prepare(name, value)
	if err != nil {
		v.logWarn("write rejected", "name", name, "value", value, "error", err)
		return err
	}
	return v.dispatch(ctx, w)
}

// dispatch hands a prepared write to the writer and evicts the cache on
// acknowledgement.
func (v *View) dispatch(ctx context.Context, w WireWrite) error {
	if v.writer == nil {
		return ErrNoWriter
	}

	ok, err := v.writer.SetValue(ctx, v.deviceID, w.Key, w.Value, w.Tag)
	if err != nil {
		return fmt.Errorf("writing %s: %w", w.Name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAcknowledged, w.Name)
	}

	for _, name := range w.Evict {
		delete(v.cache, name)
	}
	return nil
}

func (v *View) logDebug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}

func (v *View) logWarn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, args...)
	}
}
