package values

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

const testPrefix = "PDPR1H1HAW100_FW539187_"

const testDeviceID = "TEST123_DEVICE"

const testMappingDoc = `{
  "temperature": {"type": "sensor", "key": "w_1eommf39k"},
  "ph": {"type": "sensor", "key": "w_1eomog123"},
  "target_ph": {"type": "number", "key": "w_1eomph456"},
  "pump_switch": {"type": "switch", "key": "w_1switch123"},
  "alarm_ph": {"type": "binary_sensor", "key": "w_1switch123"},
  "flow_alarm": {"type": "binary_sensor", "key": "w_1flag"},
  "water_unit": {
    "type": "select",
    "key": "w_1select456",
    "options": {"0": "LITER_LABEL", "1": "M3_LABEL"},
    "conversion": {"LITER_LABEL": "L", "M3_LABEL": "m³"}
  },
  "speed": {
    "type": "select",
    "key": "w_1speed",
    "options": {"0": "low", "1": "high"}
  },
  "ph_type_dosing": {
    "type": "sensor",
    "key": "w_1label789",
    "conversion": {"|PDPR1H1HAW100_FW539187_LABEL_w_1eklg44ro_ALCALYNE|": "alcalyne"}
  },
  "alarm_low": {"type": "number", "key": "w_1bound", "field": "minT"},
  "alarm_high": {"type": "number", "key": "w_1bound", "field": "maxT"},
  "lonely_high": {"type": "number", "key": "w_1lonely", "field": "maxT"},
  "fallback_high": {"type": "number", "key": "w_1fallback", "field": "maxT"},
  "heater": {"type": "switch", "key": "w_1prebool"},
  "weird_switch": {"type": "switch", "key": "w_1weird"},
  "missing_sensor": {"type": "sensor", "key": "w_1nothere"},
  "mystery": {"type": "gauge", "key": "w_1eommf39k"}
}`

const testSnapshotDoc = `{
  "PDPR1H1HAW100_FW539187_w_1eommf39k": {"current": 25.5, "magnitude": ["°C", "CDEG"]},
  "PDPR1H1HAW100_FW539187_w_1eomog123": {"current": 7.2, "magnitude": ["pH", "PH_UNIT"]},
  "PDPR1H1HAW100_FW539187_w_1eomph456": {"current": 7.0, "magnitude": ["ph"], "absMin": 6.0, "absMax": 8.0, "resolution": 0.1},
  "PDPR1H1HAW100_FW539187_w_1switch123": {"current": "O"},
  "PDPR1H1HAW100_FW539187_w_1flag": {"current": "F"},
  "PDPR1H1HAW100_FW539187_w_1select456": {"current": "1"},
  "PDPR1H1HAW100_FW539187_w_1speed": {"current": 0},
  "PDPR1H1HAW100_FW539187_w_1label789": {"current": "|PDPR1H1HAW100_FW539187_LABEL_w_1eklg44ro_ALCALYNE|", "magnitude": ["undefined"]},
  "PDPR1H1HAW100_FW539187_w_1bound": {"minT": 5.0, "maxT": 8.1, "absMin": 0, "absMax": 14, "resolution": 0.1, "magnitude": ["°C"]},
  "PDPR1H1HAW100_FW539187_w_1lonely": {"minT": 2.0, "maxT": 9.5, "absMin": 0, "absMax": 14, "resolution": 0.1},
  "PDPR1H1HAW100_FW539187_w_1fallback": {"maxT": 9, "absMin": 1, "absMax": 14, "resolution": 0.5},
  "PDPR1H1HAW100_FW539187_w_1prebool": true,
  "PDPR1H1HAW100_FW539187_w_1weird": "just a string",
  "PDPR1H1HAW100_FW539187_w_1nulled": null
}`

func testTable(t *testing.T) *mapping.Table {
	t.Helper()
	table, err := mapping.Parse([]byte(testMappingDoc))
	if err != nil {
		t.Fatalf("parsing test mapping: %v", err)
	}
	return table
}

func parseTable(doc string) (*mapping.Table, error) {
	return mapping.Parse([]byte(doc))
}

func testSnapshot(t *testing.T) Snapshot {
	t.Helper()
	var snap Snapshot
	if err := json.Unmarshal([]byte(testSnapshotDoc), &snap); err != nil {
		t.Fatalf("parsing test snapshot: %v", err)
	}
	return snap
}

func testCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec(testTable(t), testPrefix, testSnapshot(t))
}

// setCall records one Writer invocation.
type setCall struct {
	deviceID string
	key      string
	value    any
	tag      ValueType
}

// mockWriter is a test double for Writer.
type mockWriter struct {
	calls []setCall
	ack   bool
	err   error
}

func newMockWriter() *mockWriter {
	return &mockWriter{ack: true}
}

func (m *mockWriter) SetValue(_ context.Context, deviceID, key string, value any, tag ValueType) (bool, error) {
	m.calls = append(m.calls, setCall{deviceID: deviceID, key: key, value: value, tag: tag})
	if m.err != nil {
		return false, m.err
	}
	return m.ack, nil
}

var errLinkDown = errors.New("link down")

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func approxPtr(p *float64, want float64) bool {
	return p != nil && approx(*p, want)
}

func samePtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return approx(*a, *b)
}

// deref renders an optional bound for failure messages.
func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
