package values

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one raw field record of a snapshot. It is one of Scalar,
// *Structured or Opaque.
type Record interface {
	record()
}

// Scalar is a pre-decoded boolean record.
type Scalar bool

// Structured is a record object. Only current and magnitude are kept
// verbatim; every other numeric field (absMin, absMax, resolution, minT,
// maxT, ...) is available through Float.
type Structured struct {
	current   any
	magnitude []string
	numbers   map[string]float64
}

// Opaque is a record of any other shape (string, number, array). It keeps
// membership in the snapshot but only the sensor kind can read it.
type Opaque struct {
	Value any
}

func (Scalar) record()      {}
func (*Structured) record() {}
func (Opaque) record()      {}

// Raw field names.
const (
	fieldMagnitude  = "magnitude"
	fieldAbsMin     = "absMin"
	fieldAbsMax     = "absMax"
	fieldResolution = "resolution"
)

// NewStructured builds a structured record. current may be nil, a string,
// a bool, a json.Number or any Go number.
func NewStructured(current any, magnitude []string, numbers map[string]float64) *Structured {
	s := &Structured{
		current:   current,
		magnitude: magnitude,
		numbers:   make(map[string]float64, len(numbers)),
	}
	for k, v := range numbers {
		s.numbers[k] = v
	}
	return s
}

// Current returns the raw current value and whether it is present.
func (s *Structured) Current() (any, bool) {
	return s.current, s.current != nil
}

// Magnitude returns the unit candidates reported by the device.
func (s *Structured) Magnitude() []string {
	return s.magnitude
}

// Float returns a numeric field. The "current" field is read from the
// current value when it is numeric.
func (s *Structured) Float(field string) (float64, bool) {
	if field == "current" {
		return toFloat(s.current)
	}
	v, ok := s.numbers[field]
	return v, ok
}

// UnmarshalJSON decodes a record object, keeping numbers as json.Number so
// their text form survives for conversion lookups.
func (s *Structured) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	s.current = nil
	s.magnitude = nil
	s.numbers = make(map[string]float64)

	for name, raw := range fields {
		switch name {
		case "current":
			v, err := decodeAny(raw)
			if err != nil {
				return fmt.Errorf("field current: %w", err)
			}
			s.current = v
		case fieldMagnitude:
			var items []any
			if err := json.Unmarshal(raw, &items); err != nil {
				// A non-list magnitude carries no usable unit.
				continue
			}
			for _, item := range items {
				s.magnitude = append(s.magnitude, stringify(item))
			}
		default:
			v, err := decodeAny(raw)
			if err != nil {
				continue
			}
			if f, ok := toFloat(v); ok {
				s.numbers[name] = f
			}
		}
	}
	return nil
}

// Snapshot maps full device field keys to raw records for one device.
type Snapshot map[string]Record

// UnmarshalJSON decodes a device's instant-value object. Null records are
// treated as absent and dropped.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Snapshot, len(raw))
	for key, msg := range raw {
		rec, err := ParseRecord(msg)
		if err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		if rec != nil {
			out[key] = rec
		}
	}
	*s = out
	return nil
}

// ParseRecord decodes one raw record. It returns nil for JSON null.
func ParseRecord(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty record")
	}

	switch trimmed[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, err
		}
		return Scalar(b), nil
	case '{':
		s := &Structured{}
		if err := s.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return s, nil
	default:
		v, err := decodeAny(trimmed)
		if err != nil {
			return nil, err
		}
		return Opaque{Value: v}, nil
	}
}

// decodeAny decodes a JSON value with numbers kept as json.Number.
func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// stringify renders a raw value the way mapping conversion keys are written.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// toFloat converts a raw numeric value. Strings are not numbers.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// plainValue converts json.Number to float64 so decoded values are plain Go
// types. Numbers that do not fit a float64 keep their text form.
func plainValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}
