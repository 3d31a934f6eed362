package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/lmaertin/pooldose-go/internal/values"
)

// Measurement names.
const (
	// measurementReadings holds one point per decoded value per poll.
	measurementReadings = "pooldose_readings"

	// measurementWrites holds one point per write attempt.
	measurementWrites = "pooldose_writes"
)

// WriteSnapshot writes every decoded value of a poll as one point each.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Numeric values land in the "value" field, booleans in "state" and
// strings in "text". Setpoints additionally carry "min", "max" and "step".
//
// Example:
//
//	client.WriteSnapshot(view.DeviceID(), view.Structured(), time.Now())
func (c *Client) WriteSnapshot(deviceID string, snapshot values.StructuredSnapshot, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	for _, p := range snapshotPoints(deviceID, snapshot, ts) {
		c.writeAPI.WritePoint(p)
	}
}

// WriteOutcome records a write attempt.
//
// Parameters:
//   - deviceID: Controller device ID
//   - name: Logical value name that was written
//   - outcome: "accepted", "rejected" or "failed"
//   - source: Origin of the write (e.g., "api", "mqtt")
func (c *Client) WriteOutcome(deviceID, name, outcome, source string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementWrites,
		map[string]string{
			"device_id": deviceID,
			"name":      name,
			"outcome":   outcome,
			"source":    source,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// snapshotPoints converts a structured snapshot into line-protocol points.
// Values without a representable field are skipped.
func snapshotPoints(deviceID string, snapshot values.StructuredSnapshot, ts time.Time) []*write.Point {
	points := make([]*write.Point, 0, snapshot.Len())

	snapshot.Each(func(name string, d values.Decoded) {
		tags := map[string]string{
			"device_id": deviceID,
			"name":      name,
			"kind":      string(d.Kind()),
		}
		fields := make(map[string]interface{}, 4)

		switch v := d.(type) {
		case values.SensorValue:
			if v.Unit != values.NoUnit {
				tags["unit"] = v.Unit.String()
			}
			addField(fields, v.Value)
		case values.NumberValue:
			if v.Unit != values.NoUnit {
				tags["unit"] = v.Unit.String()
			}
			fields["value"] = v.Value
			addBound(fields, "min", v.Min)
			addBound(fields, "max", v.Max)
			addBound(fields, "step", v.Step)
		case values.BinaryValue:
			fields["state"] = v.Value
		case values.SwitchValue:
			fields["state"] = v.Value
		case values.SelectValue:
			fields["text"] = v.Value
		}

		if len(fields) == 0 {
			return
		}
		points = append(points, write.NewPoint(measurementReadings, tags, fields, ts))
	})

	return points
}

// addField stores a dynamically typed sensor value under the field name
// matching its type.
func addField(fields map[string]interface{}, value any) {
	switch x := value.(type) {
	case float64:
		fields["value"] = x
	case bool:
		fields["state"] = x
	case string:
		if x != "" {
			fields["text"] = x
		}
	}
}

// addBound sets an optional setpoint envelope field.
func addBound(fields map[string]any, name string, v *float64) {
	if v != nil {
		fields[name] = *v
	}
}
