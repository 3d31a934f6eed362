package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// Write sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
)

// Write outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Reading is one decoded value at one point in time.
type Reading struct {
	ID         int64           `json:"id"`
	DeviceID   string          `json:"device_id"`
	Name       string          `json:"name"`
	Kind       mapping.Kind    `json:"kind"`
	Value      json.RawMessage `json:"value"`
	Unit       string          `json:"unit,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// WriteRecord is one audited write attempt.
type WriteRecord struct {
	ID        string          `json:"id"`
	DeviceID  string          `json:"device_id"`
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Source    string          `json:"source"`
	Outcome   string          `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository stores and retrieves value history and the write audit log.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordReadings inserts readings in one transaction.
	RecordReadings(ctx context.Context, readings []Reading) error

	// GetHistory returns the newest readings of one value, newest first.
	// The limit defaults to 50 and is clamped to 1000.
	GetHistory(ctx context.Context, deviceID, name string, limit int) ([]Reading, error)

	// RecordWrite inserts a write attempt and returns it with ID and
	// timestamp filled in.
	RecordWrite(ctx context.Context, rec WriteRecord) (WriteRecord, error)

	// ListWrites returns the newest write attempts, newest first.
	ListWrites(ctx context.Context, deviceID string, limit int) ([]WriteRecord, error)

	// Prune deletes readings recorded before the cutoff and reports how
	// many rows were removed. The write audit log is kept.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// OutcomeOf classifies the error of a write. Validation rejections never
// reached the device; everything else that failed did not get an
// acknowledgement.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, values.ErrRejected):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// ReadingsFrom converts the named values of a snapshot into readings.
// A nil names slice converts every value. Names missing from the snapshot
// are skipped.
func ReadingsFrom(deviceID string, snapshot values.StructuredSnapshot, names []string, at time.Time) []Reading {
	var selected map[string]bool
	if names != nil {
		selected = make(map[string]bool, len(names))
		for _, n := range names {
			selected[n] = true
		}
	}

	var out []Reading
	snapshot.Each(func(name string, d values.Decoded) {
		if selected != nil && !selected[name] {
			return
		}
		raw, err := json.Marshal(d.Current())
		if err != nil {
			return
		}
		out = append(out, Reading{
			DeviceID:   deviceID,
			Name:       name,
			Kind:       d.Kind(),
			Value:      raw,
			Unit:       unitOf(d),
			RecordedAt: at.UTC(),
		})
	})
	return out
}

func unitOf(d values.Decoded) string {
	switch v := d.(type) {
	case values.SensorValue:
		return v.Unit.String()
	case values.NumberValue:
		return v.Unit.String()
	}
	return ""
}
