package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Entry describes one logical value of a controller.
type Entry struct {
	// Name is the logical name, unique within a table. Filled from the
	// JSON object key.
	Name string `json:"-"`

	// Key is the device field suffix. Empty means Name is used.
	Key string `json:"key,omitempty"`

	// Kind selects the decode and write rules.
	Kind Kind `json:"type"`

	// Field selects which raw sub-field holds a number's value
	// ("current", "minT" or "maxT"). Empty means "current".
	Field string `json:"field,omitempty"`

	// Unit, when set, replaces the unit reported by the device.
	Unit string `json:"unit,omitempty"`

	// Options maps a device-side option index to its label (select only).
	Options map[string]string `json:"options,omitempty"`

	// Conversion maps a raw or label string to its display form.
	Conversion map[string]string `json:"conversion,omitempty"`
}

// DeviceKey returns the field suffix used to locate the raw record.
func (e Entry) DeviceKey() string {
	if e.Key == "" {
		return e.Name
	}
	return e.Key
}

// Selector returns the raw sub-field that holds the entry's value.
func (e Entry) Selector() string {
	if e.Field == "" {
		return FieldCurrent
	}
	return e.Field
}

// Convert applies the entry's conversion table to s.
// The second result reports whether a conversion applied.
func (e Entry) Convert(s string) (string, bool) {
	if e.Conversion == nil {
		return s, false
	}
	v, ok := e.Conversion[s]
	if !ok {
		return s, false
	}
	return v, true
}

// pair holds the two edges of a paired setpoint.
type pair struct {
	min string
	max string
}

// Table is an immutable set of entries for one model and firmware.
type Table struct {
	entries  map[string]Entry
	names    []string
	siblings map[string]pair
	unknown  []string
}

// NewTable builds a table from entries. Entry names are taken from the map
// keys. Entries with an unknown kind are kept and reported by Unknown.
func NewTable(entries map[string]Entry) *Table {
	t := &Table{
		entries:  make(map[string]Entry, len(entries)),
		names:    make([]string, 0, len(entries)),
		siblings: make(map[string]pair),
	}

	for name, e := range entries {
		e.Name = name
		t.entries[name] = e
		t.names = append(t.names, name)
		if !e.Kind.Valid() {
			t.unknown = append(t.unknown, name)
		}
	}
	sort.Strings(t.names)
	sort.Strings(t.unknown)

	// Iterate in name order so the first entry wins deterministically when a
	// file declares the same bound twice.
	for _, name := range t.names {
		e := t.entries[name]
		if e.Kind != KindNumber || !IsBound(e.Field) {
			continue
		}
		p := t.siblings[e.DeviceKey()]
		switch e.Field {
		case FieldMinT:
			if p.min == "" {
				p.min = name
			}
		case FieldMaxT:
			if p.max == "" {
				p.max = name
			}
		}
		t.siblings[e.DeviceKey()] = p
	}

	return t
}

// Parse decodes a mapping document.
func Parse(data []byte) (*Table, error) {
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMapping, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidMapping)
	}
	return NewTable(entries), nil
}

// Lookup returns the entry for a logical name.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Names returns every logical name in sorted order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// ByKind returns the entries of one kind, sorted by name.
func (t *Table) ByKind(kind Kind) []Entry {
	var out []Entry
	for _, name := range t.names {
		if e := t.entries[name]; e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// AvailableTypes returns the sorted logical names of each known kind that
// has at least one entry.
func (t *Table) AvailableTypes() map[Kind][]string {
	out := make(map[Kind][]string)
	for _, name := range t.names {
		e := t.entries[name]
		if !e.Kind.Valid() {
			continue
		}
		out[e.Kind] = append(out[e.Kind], name)
	}
	return out
}

// Sibling returns the opposite bound of a paired number entry. It reports
// false when name is not a bound or the table has no opposite edge for it.
func (t *Table) Sibling(name string) (Entry, bool) {
	e, ok := t.entries[name]
	if !ok || e.Kind != KindNumber || !IsBound(e.Field) {
		return Entry{}, false
	}
	p := t.siblings[e.DeviceKey()]
	other := p.max
	if e.Field == FieldMaxT {
		other = p.min
	}
	if other == "" {
		return Entry{}, false
	}
	return t.entries[other], true
}

// Unknown returns the names of entries whose kind is not recognised.
func (t *Table) Unknown() []string {
	out := make([]string, len(t.unknown))
	copy(out, t.unknown)
	return out
}
