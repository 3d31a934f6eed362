package values

import (
	"encoding/json"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

// Unit is a measurement unit. The empty unit means "none" and marshals
// to JSON null.
type Unit string

// NoUnit is the absent unit.
const NoUnit Unit = ""

// String returns the unit text.
func (u Unit) String() string {
	return string(u)
}

// MarshalJSON encodes the empty unit as null.
func (u Unit) MarshalJSON() ([]byte, error) {
	if u == NoUnit {
		return []byte("null"), nil
	}
	return json.Marshal(string(u))
}

// UnmarshalJSON accepts a string or null.
func (u *Unit) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*u = NoUnit
		return nil
	}
	*u = Unit(*s)
	return nil
}

// Decoded is a decoded value of one of the five kinds.
type Decoded interface {
	// Kind returns the kind the value was decoded as.
	Kind() mapping.Kind

	// Current returns the value itself without unit or bounds.
	Current() any
}

// SensorValue is a decoded sensor reading. Value is a float64, a string or
// a bool depending on the device field.
type SensorValue struct {
	Value any  `json:"value"`
	Unit  Unit `json:"unit"`
}

// BinaryValue is a decoded binary sensor state.
type BinaryValue struct {
	Value bool `json:"value"`
}

// SwitchValue is a decoded switch state.
type SwitchValue struct {
	Value bool `json:"value"`
}

// NumberValue is a decoded setpoint with its writable envelope. Min, Max
// and Step are nil when the device record does not carry them.
type NumberValue struct {
	Value float64  `json:"value"`
	Unit  Unit     `json:"unit"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Step  *float64 `json:"step"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Range returns the inclusive bounds when both are known.
func (v NumberValue) Range() (lo, hi float64, ok bool) {
	if v.Min == nil || v.Max == nil {
		return 0, 0, false
	}
	return *v.Min, *v.Max, true
}

// SelectValue is the display string of a decoded select.
type SelectValue struct {
	Value string `json:"value"`
}

func (SensorValue) Kind() mapping.Kind { return mapping.KindSensor }
func (BinaryValue) Kind() mapping.Kind { return mapping.KindBinarySensor }
func (SwitchValue) Kind() mapping.Kind { return mapping.KindSwitch }
func (NumberValue) Kind() mapping.Kind { return mapping.KindNumber }
func (SelectValue) Kind() mapping.Kind { return mapping.KindSelect }

func (v SensorValue) Current() any { return v.Value }
func (v BinaryValue) Current() any { return v.Value }
func (v SwitchValue) Current() any { return v.Value }
func (v NumberValue) Current() any { return v.Value }
func (v SelectValue) Current() any { return v.Value }
