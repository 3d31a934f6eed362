package values

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

// stepTolerance absorbs floating-point error in range and step checks.
const stepTolerance = 1e-9

// ValueType is the wire type tag of a write.
type ValueType string

// Wire type tags accepted by the device.
const (
	ValueTypeNumber ValueType = "NUMBER"
	ValueTypeString ValueType = "STRING"
)

// WireWrite is a validated write ready for the transport.
type WireWrite struct {
	// Name is the logical name that was written.
	Name string

	// Key is the full device field key.
	Key string

	// Value is the wire value: a float64, a string, an int option index,
	// or a []float64 {min, max} pair for paired bounds.
	Value any

	// Tag is the wire type tag.
	Tag ValueType

	// Evict lists the logical names whose cached values the write invalidates.
	Evict []string
}

// Prepare validates a dynamically typed value against the entry's kind.
// Numbers accept any Go numeric type or json.Number, switches accept only
// bool and selects accept only string.
func (c *Codec) Prepare(name string, value any) (WireWrite, error) {
	e, ok := c.table.Lookup(name)
	if !ok {
		return WireWrite{}, fmt.Errorf("%w: %w: %s", ErrRejected, ErrUnknownName, name)
	}

	switch e.Kind {
	case mapping.KindNumber:
		f, ok := toFloat(value)
		if !ok {
			return WireWrite{}, fmt.Errorf("%w: %w: %s got %T", ErrRejected, ErrNotNumber, name, value)
		}
		return c.PrepareNumber(name, f)
	case mapping.KindSwitch:
		b, ok := value.(bool)
		if !ok {
			return WireWrite{}, fmt.Errorf("%w: %w: %s got %T", ErrRejected, ErrNotBoolean, name, value)
		}
		return c.PrepareSwitch(name, b)
	case mapping.KindSelect:
		s, ok := value.(string)
		if !ok {
			return WireWrite{}, fmt.Errorf("%w: %w: %s got %T", ErrRejected, ErrInvalidOption, name, value)
		}
		return c.PrepareSelect(name, s)
	default:
		return WireWrite{}, fmt.Errorf("%w: %w: %s is %s and not writable", ErrRejected, ErrKindMismatch, name, e.Kind)
	}
}

// PrepareNumber validates a setpoint against its range and step grid.
// A check is skipped when the record lacks its bounds or resolution.
// A paired bound is written together with its sibling as {min, max}.
func (c *Codec) PrepareNumber(name string, value float64) (WireWrite, error) {
	e, err := c.writable(name, mapping.KindNumber)
	if err != nil {
		return WireWrite{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return WireWrite{}, fmt.Errorf("%w: %w: %s got %v", ErrRejected, ErrNotNumber, name, value)
	}

	rec, ok := c.snapshot[c.FullKey(e)]
	if !ok {
		return WireWrite{}, fmt.Errorf("%w: %w: %s", ErrRejected, ErrNoCurrentValue, name)
	}
	current, err := decodeNumber(e, rec)
	if err != nil {
		return WireWrite{}, fmt.Errorf("%w: %w: %s: %w", ErrRejected, ErrNoCurrentValue, name, err)
	}

	if lo, hi, ok := current.Range(); ok {
		if value < lo-stepTolerance || value > hi+stepTolerance {
			return WireWrite{}, fmt.Errorf("%w: %w: %s=%v outside [%v, %v]",
				ErrRejected, ErrOutOfRange, name, value, lo, hi)
		}
	}
	if current.Step != nil && *current.Step > 0 && current.Min != nil {
		step, lo := *current.Step, *current.Min
		n := (value - lo) / step
		if math.Abs(math.Round(n)-n) > stepTolerance {
			return WireWrite{}, fmt.Errorf("%w: %w: %s=%v with step %v from %v",
				ErrRejected, ErrOffStep, name, value, step, lo)
		}
	}

	w := WireWrite{
		Name:  name,
		Key:   c.FullKey(e),
		Value: value,
		Tag:   ValueTypeNumber,
		Evict: []string{name},
	}

	if !mapping.IsBound(e.Field) {
		return w, nil
	}

	other, sibling, err := c.siblingBound(e, rec)
	if err != nil {
		return WireWrite{}, fmt.Errorf("%w: %w: %s: %w", ErrRejected, ErrUnresolvedBound, name, err)
	}
	if e.Field == mapping.FieldMinT {
		w.Value = []float64{value, other}
	} else {
		w.Value = []float64{other, value}
	}
	if sibling != "" {
		w.Evict = append(w.Evict, sibling)
	}
	return w, nil
}

// siblingBound resolves the current value of the opposite bound. The
// mapping sibling is authoritative; without one the raw record's opposite
// field is used, then absMin or absMax. The second result is the sibling's
// logical name when it came from the mapping.
func (c *Codec) siblingBound(e mapping.Entry, rec Record) (float64, string, error) {
	if sib, ok := c.table.Sibling(e.Name); ok {
		sibRec, ok := c.snapshot[c.FullKey(sib)]
		if !ok {
			return 0, "", fmt.Errorf("sibling %s has no raw data", sib.Name)
		}
		v, err := decodeNumber(sib, sibRec)
		if err != nil {
			return 0, "", fmt.Errorf("sibling %s: %w", sib.Name, err)
		}
		return v.Value, sib.Name, nil
	}

	r, ok := rec.(*Structured)
	if !ok {
		return 0, "", fmt.Errorf("record is %T", rec)
	}
	opposite := mapping.OppositeBound(e.Field)
	if v, ok := r.Float(opposite); ok {
		return v, "", nil
	}
	fallback := fieldAbsMax
	if opposite == mapping.FieldMinT {
		fallback = fieldAbsMin
	}
	if v, ok := r.Float(fallback); ok {
		return v, "", nil
	}
	return 0, "", fmt.Errorf("no %s or %s field", opposite, fallback)
}

// PrepareSwitch encodes a switch state as the device sentinel "O" or "F".
func (c *Codec) PrepareSwitch(name string, on bool) (WireWrite, error) {
	e, err := c.writable(name, mapping.KindSwitch)
	if err != nil {
		return WireWrite{}, err
	}

	value := sentinelOff
	if on {
		value = sentinelOn
	}
	return WireWrite{
		Name:  name,
		Key:   c.FullKey(e),
		Value: value,
		Tag:   ValueTypeString,
		Evict: []string{name},
	}, nil
}

// PrepareSelect resolves a display value back to the device option index.
func (c *Codec) PrepareSelect(name, value string) (WireWrite, error) {
	e, err := c.writable(name, mapping.KindSelect)
	if err != nil {
		return WireWrite{}, err
	}

	indexes := sortedOptionKeys(e.Options)

	valid := false
	for _, idx := range indexes {
		if display, _ := e.Convert(e.Options[idx]); display == value {
			valid = true
			break
		}
	}
	if !valid {
		return WireWrite{}, fmt.Errorf("%w: %w: %s=%q not in %v", ErrRejected, ErrInvalidOption, name, value, SelectOptions(e))
	}

	index, ok := resolveOption(e, indexes, value)
	if !ok {
		return WireWrite{}, fmt.Errorf("%w: %w: %s=%q has no numeric option index", ErrRejected, ErrInvalidOption, name, value)
	}

	return WireWrite{
		Name:  name,
		Key:   c.FullKey(e),
		Value: index,
		Tag:   ValueTypeNumber,
		Evict: []string{name},
	}, nil
}

// resolveOption finds the option index whose converted label equals value,
// then one whose raw label equals value.
func resolveOption(e mapping.Entry, indexes []string, value string) (int, bool) {
	for _, idx := range indexes {
		if converted, ok := e.Convert(e.Options[idx]); ok && converted == value {
			if n, err := strconv.Atoi(idx); err == nil {
				return n, true
			}
		}
	}
	for _, idx := range indexes {
		if e.Options[idx] == value {
			if n, err := strconv.Atoi(idx); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// SelectOptions returns the display values a select accepts, ordered by
// option index.
func SelectOptions(e mapping.Entry) []string {
	indexes := sortedOptionKeys(e.Options)
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		display, _ := e.Convert(e.Options[idx])
		out = append(out, display)
	}
	return out
}

// sortedOptionKeys orders option indexes numerically where possible.
func sortedOptionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (c *Codec) writable(name string, kind mapping.Kind) (mapping.Entry, error) {
	e, ok := c.table.Lookup(name)
	if !ok {
		return mapping.Entry{}, fmt.Errorf("%w: %w: %s", ErrRejected, ErrUnknownName, name)
	}
	if e.Kind != kind {
		return mapping.Entry{}, fmt.Errorf("%w: %w: %s is %s, not %s", ErrRejected, ErrKindMismatch, name, e.Kind, kind)
	}
	return e, nil
}

// MarshalJSON renders a write for logs and audit records.
func (w WireWrite) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string    `json:"name"`
		Key   string    `json:"key"`
		Value any       `json:"value"`
		Tag   ValueType `json:"type"`
	}{w.Name, w.Key, w.Value, w.Tag})
}
