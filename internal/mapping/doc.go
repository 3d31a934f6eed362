// Package mapping describes how a PoolDose controller's raw instant-value
// fields translate into named, typed values.
//
// Every controller model and firmware combination publishes its values under
// opaque field keys (e.g. "PDPR1H1HAW100_FW539187_w_1eommf39k"). A mapping
// table, shipped as JSON per (model, firmware) pair, gives each field a stable
// logical name, a value kind and the metadata needed to decode it:
//
//	{
//	  "ph": {"type": "sensor", "key": "w_1eomog123"},
//	  "ph_target": {"type": "number", "key": "w_1eomph456"},
//	  "water_meter_unit": {
//	    "type": "select",
//	    "key": "w_1select456",
//	    "options": {"0": "..._M_", "1": "..._LITER"},
//	    "conversion": {"..._M_": "m³", "..._LITER": "L"}
//	  }
//	}
//
// # Kinds
//
// The set of kinds is closed: sensor, binary_sensor, switch, number and
// select. Entries with any other kind are retained so that the table mirrors
// the file, but they never decode to a value.
//
// # Paired bounds
//
// Two number entries sharing one device key, one selecting the "minT" field
// and the other "maxT", describe the lower and upper edge of a single setpoint
// envelope. The table indexes these pairs when it is built so a write to one
// bound can find its sibling without scanning.
//
// # Thread Safety
//
// A Table is immutable after construction and safe for concurrent use.
// Loader caches tables and is also safe for concurrent use.
package mapping
