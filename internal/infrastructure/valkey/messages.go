package valkey

import (
	"strings"
	"time"

	"github.com/lmaertin/pooldose-go/internal/values"
)

// ValueMessage is the JSON stored under a value key and published on the
// changes channel.
type ValueMessage struct {
	DeviceID  string         `json:"device_id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Value     any            `json:"value"`
	Unit      string         `json:"unit,omitempty"`
	Writable  bool           `json:"writable"`
	Decoded   values.Decoded `json:"decoded"`
	Timestamp time.Time      `json:"timestamp"`
}

// SnapshotMessage is the JSON stored under the snapshot key.
type SnapshotMessage struct {
	DeviceID  string                    `json:"device_id"`
	Values    values.StructuredSnapshot `json:"values"`
	Timestamp time.Time                 `json:"timestamp"`
}

// HealthMessage is the JSON stored under the health key.
type HealthMessage struct {
	DeviceID  string    `json:"device_id"`
	Online    bool      `json:"online"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newValueMessage(deviceID, name string, d values.Decoded, at time.Time) ValueMessage {
	msg := ValueMessage{
		DeviceID:  deviceID,
		Name:      name,
		Kind:      string(d.Kind()),
		Value:     d.Current(),
		Writable:  d.Kind().Writable(),
		Decoded:   d,
		Timestamp: at.UTC(),
	}
	switch v := d.(type) {
	case values.SensorValue:
		msg.Unit = v.Unit.String()
	case values.NumberValue:
		msg.Unit = v.Unit.String()
	}
	return msg
}

// joinKey joins key segments with colons, trimming colons from each segment
// and skipping empty ones.
func joinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}
