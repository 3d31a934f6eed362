package values

import (
	"sort"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

// StructuredSnapshot groups every decoded value by kind, keyed by logical
// name. Kinds without values are omitted from JSON.
type StructuredSnapshot struct {
	Sensor       map[string]SensorValue `json:"sensor,omitempty"`
	BinarySensor map[string]BinaryValue `json:"binary_sensor,omitempty"`
	Switch       map[string]SwitchValue `json:"switch,omitempty"`
	Number       map[string]NumberValue `json:"number,omitempty"`
	Select       map[string]SelectValue `json:"select,omitempty"`
}

func (s *StructuredSnapshot) add(name string, d Decoded) {
	switch x := d.(type) {
	case SensorValue:
		if s.Sensor == nil {
			s.Sensor = make(map[string]SensorValue)
		}
		s.Sensor[name] = x
	case BinaryValue:
		if s.BinarySensor == nil {
			s.BinarySensor = make(map[string]BinaryValue)
		}
		s.BinarySensor[name] = x
	case SwitchValue:
		if s.Switch == nil {
			s.Switch = make(map[string]SwitchValue)
		}
		s.Switch[name] = x
	case NumberValue:
		if s.Number == nil {
			s.Number = make(map[string]NumberValue)
		}
		s.Number[name] = x
	case SelectValue:
		if s.Select == nil {
			s.Select = make(map[string]SelectValue)
		}
		s.Select[name] = x
	}
}

// Len returns the number of values across all kinds.
func (s StructuredSnapshot) Len() int {
	return len(s.Sensor) + len(s.BinarySensor) + len(s.Switch) + len(s.Number) + len(s.Select)
}

// Get returns one value by logical name.
func (s StructuredSnapshot) Get(name string) (Decoded, bool) {
	if v, ok := s.Sensor[name]; ok {
		return v, true
	}
	if v, ok := s.BinarySensor[name]; ok {
		return v, true
	}
	if v, ok := s.Switch[name]; ok {
		return v, true
	}
	if v, ok := s.Number[name]; ok {
		return v, true
	}
	if v, ok := s.Select[name]; ok {
		return v, true
	}
	return nil, false
}

// Kind returns the values of one kind as a generic map.
func (s StructuredSnapshot) Kind(kind mapping.Kind) map[string]Decoded {
	out := make(map[string]Decoded)
	s.Each(func(name string, d Decoded) {
		if d.Kind() == kind {
			out[name] = d
		}
	})
	return out
}

// Each calls fn for every value, ordered by kind and then by name.
func (s StructuredSnapshot) Each(fn func(name string, d Decoded)) {
	for _, name := range sortedKeys(s.Sensor) {
		fn(name, s.Sensor[name])
	}
	for _, name := range sortedKeys(s.BinarySensor) {
		fn(name, s.BinarySensor[name])
	}
	for _, name := range sortedKeys(s.Switch) {
		fn(name, s.Switch[name])
	}
	for _, name := range sortedKeys(s.Number) {
		fn(name, s.Number[name])
	}
	for _, name := range sortedKeys(s.Select) {
		fn(name, s.Select[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
