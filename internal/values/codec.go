package values

import (
	"fmt"
	"strings"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

// Unit markers that mean "no unit". Controllers tag pH fields with a
// spurious unit which is suppressed by prefix.
const (
	unitUndefined = "undefined"
	unitPHPrefix  = "ph"
)

// Switch sentinels used by the device.
const (
	sentinelOn  = "O"
	sentinelOff = "F"
)

// Codec decodes and prepares writes for one snapshot. It is a pure function
// of its inputs and safe for concurrent use.
type Codec struct {
	table    *mapping.Table
	prefix   string
	snapshot Snapshot
}

// NewCodec creates a codec. prefix is prepended to every entry's device key
// to form the full snapshot key, e.g. "PDPR1H1HAW100_FW539187_".
func NewCodec(table *mapping.Table, prefix string, snapshot Snapshot) *Codec {
	if table == nil {
		table = mapping.NewTable(nil)
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return &Codec{table: table, prefix: prefix, snapshot: snapshot}
}

// Table returns the mapping table.
func (c *Codec) Table() *mapping.Table {
	return c.table
}

// Prefix returns the field key prefix.
func (c *Codec) Prefix() string {
	return c.prefix
}

// FullKey returns the snapshot key of an entry.
func (c *Codec) FullKey(e mapping.Entry) string {
	return c.prefix + e.DeviceKey()
}

// Raw returns the raw record behind a logical name.
func (c *Codec) Raw(name string) (Record, bool) {
	e, ok := c.table.Lookup(name)
	if !ok {
		return nil, false
	}
	rec, ok := c.snapshot[c.FullKey(e)]
	return rec, ok
}

// Decode returns the decoded value of a logical name. The error wraps
// ErrAbsent and states why no value is available.
func (c *Codec) Decode(name string) (Decoded, error) {
	e, ok := c.table.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrAbsent, ErrUnknownName, name)
	}
	return c.decodeEntry(e)
}

func (c *Codec) decodeEntry(e mapping.Entry) (Decoded, error) {
	key := c.FullKey(e)
	rec, ok := c.snapshot[key]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrAbsent, ErrNoRawData, key)
	}

	var (
		d   Decoded
		err error
	)
	switch e.Kind {
	case mapping.KindSensor:
		d, err = decodeSensor(e, rec)
	case mapping.KindBinarySensor:
		d, err = decodeBinary(e, rec)
	case mapping.KindSwitch:
		d, err = decodeSwitch(rec)
	case mapping.KindNumber:
		d, err = decodeNumber(e, rec)
	case mapping.KindSelect:
		d, err = decodeSelect(e, rec)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAbsent, e.Name, err)
	}
	return d, nil
}

func decodeSensor(e mapping.Entry, rec Record) (Decoded, error) {
	var (
		value any
		unit  = NoUnit
	)
	switch r := rec.(type) {
	case *Structured:
		current, ok := r.Current()
		if !ok {
			return nil, fmt.Errorf("%w: sensor has no current value", ErrMalformed)
		}
		value = current
		unit = resolveUnit(e, r.Magnitude())
	case Scalar:
		value = bool(r)
	case Opaque:
		switch r.Value.(type) {
		case []any, map[string]any, nil:
			return nil, fmt.Errorf("%w: sensor record is %T", ErrMalformed, r.Value)
		}
		value = r.Value
	default:
		return nil, fmt.Errorf("%w: sensor record is %T", ErrMalformed, rec)
	}

	if converted, ok := e.Convert(stringify(value)); ok {
		return SensorValue{Value: converted, Unit: unit}, nil
	}
	return SensorValue{Value: plainValue(value), Unit: unit}, nil
}

func decodeBinary(e mapping.Entry, rec Record) (Decoded, error) {
	r, ok := rec.(*Structured)
	if !ok {
		return nil, fmt.Errorf("%w: binary sensor record is %T", ErrMalformed, rec)
	}
	current, ok := r.Current()
	if !ok {
		return nil, fmt.Errorf("%w: binary sensor has no current value", ErrMalformed)
	}

	if converted, ok := e.Convert(stringify(current)); ok {
		current = converted
	}

	switch v := current.(type) {
	case bool:
		return BinaryValue{Value: v}, nil
	case string:
		return BinaryValue{Value: strings.EqualFold(v, sentinelOn)}, nil
	default:
		if f, ok := toFloat(v); ok {
			return BinaryValue{Value: f != 0}, nil
		}
		return nil, fmt.Errorf("%w: binary sensor value is %T", ErrMalformed, current)
	}
}

func decodeSwitch(rec Record) (Decoded, error) {
	switch r := rec.(type) {
	case Scalar:
		return SwitchValue{Value: bool(r)}, nil
	case *Structured:
		current, ok := r.Current()
		if !ok {
			return nil, fmt.Errorf("%w: switch has no current value", ErrMalformed)
		}
		switch v := current.(type) {
		case string:
			return SwitchValue{Value: strings.EqualFold(v, sentinelOn)}, nil
		case bool:
			return SwitchValue{Value: v}, nil
		default:
			return nil, fmt.Errorf("%w: switch value is %T", ErrMalformed, current)
		}
	default:
		return nil, fmt.Errorf("%w: switch record is %T", ErrMalformed, rec)
	}
}

func decodeNumber(e mapping.Entry, rec Record) (NumberValue, error) {
	r, ok := rec.(*Structured)
	if !ok {
		return NumberValue{}, fmt.Errorf("%w: number record is %T", ErrMalformed, rec)
	}

	selector := e.Selector()
	value, ok := r.Float(selector)
	if !ok {
		return NumberValue{}, fmt.Errorf("%w: number has no numeric %s", ErrMalformed, selector)
	}
	n := NumberValue{
		Value: value,
		Unit:  resolveUnit(e, r.Magnitude()),
	}
	if v, ok := r.Float(fieldAbsMin); ok {
		n.Min = Float64(v)
	}
	absMax, okMax := r.Float(fieldAbsMax)
	if okMax {
		n.Max = Float64(absMax)
	}
	if v, ok := r.Float(fieldResolution); ok {
		n.Step = Float64(v)
	}

	// Paired bounds split the absolute range at its midpoint.
	switch selector {
	case mapping.FieldMinT:
		if okMax {
			n.Max = Float64(absMax / 2)
		}
	case mapping.FieldMaxT:
		if okMax && n.Step != nil {
			n.Min = Float64(absMax/2 + *n.Step)
		}
	}
	return n, nil
}

func decodeSelect(e mapping.Entry, rec Record) (Decoded, error) {
	r, ok := rec.(*Structured)
	if !ok {
		return nil, fmt.Errorf("%w: select record is %T", ErrMalformed, rec)
	}
	current, ok := r.Current()
	if !ok {
		return nil, fmt.Errorf("%w: select has no current value", ErrMalformed)
	}

	raw := stringify(current)
	if label, ok := e.Options[raw]; ok {
		display, _ := e.Convert(label)
		return SelectValue{Value: display}, nil
	}
	display, _ := e.Convert(raw)
	return SelectValue{Value: display}, nil
}

// resolveUnit picks the entry's unit override or the first magnitude, and
// suppresses empty, "undefined" and pH markers.
func resolveUnit(e mapping.Entry, magnitude []string) Unit {
	source := e.Unit
	if source == "" && len(magnitude) > 0 {
		source = magnitude[0]
	}
	lower := strings.ToLower(strings.TrimSpace(source))
	if lower == "" || lower == unitUndefined || strings.HasPrefix(lower, unitPHPrefix) {
		return NoUnit
	}
	return Unit(source)
}
