package values

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func testView(t *testing.T, w Writer) *View {
	t.Helper()
	return NewView(testTable(t), testPrefix, testDeviceID, testSnapshot(t), w)
}

func TestViewCachesReads(t *testing.T) {
	v := testView(t, nil)

	first, ok := v.Get("temperature")
	if !ok {
		t.Fatal("Get(temperature) absent")
	}
	second, ok := v.Get("temperature")
	if !ok {
		t.Fatal("second Get(temperature) absent")
	}
	if first != second {
		t.Errorf("cached value changed: %v vs %v", first, second)
	}
	if v.decodes != 1 {
		t.Errorf("decodes = %d, want 1", v.decodes)
	}
}

func TestViewDoesNotCacheAbsent(t *testing.T) {
	v := testView(t, nil)

	v.Get("missing_sensor")
	v.Get("missing_sensor")
	if v.decodes != 2 {
		t.Errorf("decodes = %d, want 2", v.decodes)
	}
	if _, ok := v.cache["missing_sensor"]; ok {
		t.Error("absent value should not be cached")
	}
}

func TestViewTypedGetters(t *testing.T) {
	v := testView(t, nil)

	if s, ok := v.Sensor("temperature"); !ok || s.Value != 25.5 || s.Unit != "°C" {
		t.Errorf("Sensor(temperature) = %+v, %v", s, ok)
	}
	if b, ok := v.BinarySensor("alarm_ph"); !ok || !b {
		t.Errorf("BinarySensor(alarm_ph) = %v, %v", b, ok)
	}
	if b, ok := v.Switch("pump_switch"); !ok || !b {
		t.Errorf("Switch(pump_switch) = %v, %v", b, ok)
	}
	if n, ok := v.Number("target_ph"); !ok || n.Value != 7.0 {
		t.Errorf("Number(target_ph) = %+v, %v", n, ok)
	}
	if s, ok := v.Select("water_unit"); !ok || s != "m³" {
		t.Errorf("Select(water_unit) = %q, %v", s, ok)
	}
	if _, ok := v.Number("temperature"); ok {
		t.Error("Number(temperature) should not match a sensor")
	}
}

func TestViewContains(t *testing.T) {
	v := testView(t, nil)

	tests := []struct {
		name string
		want bool
	}{
		{"temperature", true},
		{"weird_switch", true},
		{"missing_sensor", false},
		{"not_mapped", false},
	}
	for _, tt := range tests {
		if got := v.Contains(tt.name); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestViewWriteEvictsOnlyWrittenName(t *testing.T) {
	w := newMockWriter()
	v := testView(t, w)

	v.Get("temperature")
	v.Get("pump_switch")

	if err := v.SetSwitch(context.Background(), "pump_switch", false); err != nil {
		t.Fatalf("SetSwitch() error = %v", err)
	}

	if len(w.calls) != 1 {
		t.Fatalf("writer calls = %d, want 1", len(w.calls))
	}
	call := w.calls[0]
	if call.deviceID != testDeviceID || call.key != testPrefix+"w_1switch123" || call.value != "F" || call.tag != ValueTypeString {
		t.Errorf("call = %+v", call)
	}
	if _, ok := v.cache["pump_switch"]; ok {
		t.Error("pump_switch should be evicted")
	}
	if _, ok := v.cache["temperature"]; !ok {
		t.Error("temperature should survive the write")
	}

	// The snapshot is not mutated: the next read decodes the old raw state.
	if on, _ := v.Switch("pump_switch"); !on {
		t.Error("switch should still read the pre-write snapshot")
	}
}

func TestViewPairedWriteEvictsBoth(t *testing.T) {
	w := newMockWriter()
	v := testView(t, w)

	v.Get("alarm_low")
	v.Get("alarm_high")
	v.Get("target_ph")

	if err := v.SetNumber(context.Background(), "alarm_low", 6.2); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}

	pair, ok := w.calls[0].value.([]float64)
	if !ok || len(pair) != 2 || !approx(pair[0], 6.2) || !approx(pair[1], 8.1) {
		t.Errorf("wire value = %v, want [6.2 8.1]", w.calls[0].value)
	}
	for _, name := range []string{"alarm_low", "alarm_high"} {
		if _, ok := v.cache[name]; ok {
			t.Errorf("%s should be evicted", name)
		}
	}
	if _, ok := v.cache["target_ph"]; !ok {
		t.Error("target_ph should survive the write")
	}
}

func TestViewRejectedWriteSkipsWriter(t *testing.T) {
	w := newMockWriter()
	v := testView(t, w)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"switch from string", func() error { return v.Set(context.Background(), "pump_switch", "O") }},
		{"number off grid", func() error { return v.SetNumber(context.Background(), "target_ph", 7.25) }},
		{"number out of range", func() error { return v.SetNumber(context.Background(), "target_ph", 8.1) }},
		{"select unknown", func() error { return v.SetSelect(context.Background(), "water_unit", "gallon") }},
		{"kind mismatch", func() error { return v.SetNumber(context.Background(), "pump_switch", 1) }},
		{"unknown name", func() error { return v.SetSwitch(context.Background(), "nope", true) }},
	}
	for _, tt := range tests {
		if err := tt.fn(); !errors.Is(err, ErrRejected) {
			t.Errorf("%s: error = %v, want ErrRejected", tt.name, err)
		}
	}
	if len(w.calls) != 0 {
		t.Errorf("writer calls = %d, want 0", len(w.calls))
	}
}

func TestViewTransportOutcomes(t *testing.T) {
	t.Run("not acknowledged", func(t *testing.T) {
		w := newMockWriter()
		w.ack = false
		v := testView(t, w)
		v.Get("pump_switch")

		err := v.SetSwitch(context.Background(), "pump_switch", true)
		if !errors.Is(err, ErrNotAcknowledged) {
			t.Errorf("error = %v, want ErrNotAcknowledged", err)
		}
		if _, ok := v.cache["pump_switch"]; !ok {
			t.Error("cache should be kept when the write is not acknowledged")
		}
	})

	t.Run("transport error", func(t *testing.T) {
		w := newMockWriter()
		w.err = errLinkDown
		v := testView(t, w)

		err := v.SetSelect(context.Background(), "water_unit", "L")
		if !errors.Is(err, errLinkDown) {
			t.Errorf("error = %v, want transport error", err)
		}
	})

	t.Run("no writer", func(t *testing.T) {
		v := testView(t, nil)
		if err := v.SetSwitch(context.Background(), "pump_switch", true); !errors.Is(err, ErrNoWriter) {
			t.Errorf("error = %v, want ErrNoWriter", err)
		}
	})
}

func TestViewSelectWriteUsesIndex(t *testing.T) {
	w := newMockWriter()
	v := testView(t, w)

	if err := v.SetSelect(context.Background(), "water_unit", "m³"); err != nil {
		t.Fatalf("SetSelect() error = %v", err)
	}
	if w.calls[0].value != 1 || w.calls[0].tag != ValueTypeNumber {
		t.Errorf("call = %+v, want index 1 NUMBER", w.calls[0])
	}
}

func TestViewStructured(t *testing.T) {
	v := testView(t, nil)

	s := v.Structured()

	if got := s.Sensor["temperature"]; got.Value != 25.5 || got.Unit != "°C" {
		t.Errorf("sensor temperature = %+v", got)
	}
	if got := s.Sensor["ph"]; got.Value != 7.2 || got.Unit != NoUnit {
		t.Errorf("sensor ph = %+v", got)
	}
	if lo, hi, ok := s.Number["target_ph"].Range(); !ok || lo != 6.0 || hi != 8.0 {
		t.Errorf("number target_ph = %+v", s.Number["target_ph"])
	}
	if !s.Switch["pump_switch"].Value {
		t.Error("switch pump_switch should be true")
	}
	if !s.BinarySensor["alarm_ph"].Value {
		t.Error("binary_sensor alarm_ph should be true")
	}
	if s.Select["water_unit"].Value != "m³" {
		t.Errorf("select water_unit = %q", s.Select["water_unit"].Value)
	}

	for _, name := range []string{"missing_sensor", "weird_switch", "mystery"} {
		if _, ok := s.Get(name); ok {
			t.Errorf("%s should be omitted", name)
		}
	}
	if len(v.cache) != 0 {
		t.Errorf("Structured() should not populate the read cache, got %d entries", len(v.cache))
	}
	if v.decodes != 0 {
		t.Errorf("Structured() should not count cached decodes, got %d", v.decodes)
	}
}

func TestStructuredJSON(t *testing.T) {
	doc := `{"ph": {"type": "sensor", "key": "w_1ph"}}`
	table, err := parseTable(doc)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := ParseRecord([]byte(`{"current": 7.2, "magnitude": ["pH"]}`))
	v := NewView(table, testPrefix, testDeviceID, Snapshot{testPrefix + "w_1ph": rec}, nil)

	data, err := json.Marshal(v.Structured())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"sensor":{"ph":{"value":7.2,"unit":null}}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestStructuredEachOrder(t *testing.T) {
	v := testView(t, nil)
	s := v.Structured()

	var names []string
	s.Each(func(name string, _ Decoded) {
		names = append(names, name)
	})
	if len(names) != s.Len() {
		t.Fatalf("Each visited %d values, Len() = %d", len(names), s.Len())
	}
	if names[0] != "ph" || names[1] != "ph_type_dosing" || names[2] != "temperature" {
		t.Errorf("first sensors = %v", names[:3])
	}
}
