package mapping

// Kind identifies how a mapped value is decoded and written.
type Kind string

// Value kinds.
const (
	// KindSensor is a read-only measurement with an optional unit.
	KindSensor Kind = "sensor"

	// KindBinarySensor is a read-only on/off state.
	KindBinarySensor Kind = "binary_sensor"

	// KindSwitch is a writable on/off state.
	KindSwitch Kind = "switch"

	// KindNumber is a writable setpoint with bounds and a step.
	KindNumber Kind = "number"

	// KindSelect is a writable choice from a fixed option list.
	KindSelect Kind = "select"
)

// Kinds lists every known kind in presentation order.
var Kinds = []Kind{KindSensor, KindBinarySensor, KindSwitch, KindNumber, KindSelect}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSensor, KindBinarySensor, KindSwitch, KindNumber, KindSelect:
		return true
	default:
		return false
	}
}

// Writable reports whether values of this kind accept writes.
func (k Kind) Writable() bool {
	return k == KindSwitch || k == KindNumber || k == KindSelect
}

// Field selectors for number entries.
const (
	FieldCurrent = "current"
	FieldMinT    = "minT"
	FieldMaxT    = "maxT"
)

// IsBound reports whether field selects one edge of a paired setpoint.
func IsBound(field string) bool {
	return field == FieldMinT || field == FieldMaxT
}

// OppositeBound returns the sibling selector of a bound field, or "" when
// field is not a bound.
func OppositeBound(field string) string {
	switch field {
	case FieldMinT:
		return FieldMaxT
	case FieldMaxT:
		return FieldMinT
	default:
		return ""
	}
}
