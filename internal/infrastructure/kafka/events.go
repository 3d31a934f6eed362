package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lmaertin/pooldose-go/internal/values"
)

// Event types.
const (
	EventChange = "change"
	EventWrite  = "write"
)

// Event is the JSON body of every message.
type Event struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// messageKey partitions events per value.
func messageKey(deviceID, name string) []byte {
	return []byte(deviceID + "/" + name)
}

// changeMessages builds one message per changed value. A nil changed slice
// emits every value.
func changeMessages(deviceID string, snapshot values.StructuredSnapshot, changed []string, at time.Time) ([]kafkago.Message, error) {
	var selected map[string]bool
	if changed != nil {
		selected = make(map[string]bool, len(changed))
		for _, n := range changed {
			selected[n] = true
		}
	}

	var msgs []kafkago.Message
	var err error
	snapshot.Each(func(name string, d values.Decoded) {
		if err != nil || (selected != nil && !selected[name]) {
			return
		}
		ev := Event{
			Type:      EventChange,
			DeviceID:  deviceID,
			Name:      name,
			Kind:      string(d.Kind()),
			Value:     d.Current(),
			Timestamp: at.UTC(),
		}
		switch v := d.(type) {
		case values.SensorValue:
			ev.Unit = v.Unit.String()
		case values.NumberValue:
			ev.Unit = v.Unit.String()
		}

		var msg kafkago.Message
		msg, err = encode(ev)
		if err == nil {
			msgs = append(msgs, msg)
		}
	})
	return msgs, err
}

func encode(ev Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding %s event for %s: %w", ev.Type, ev.Name, err)
	}
	return kafkago.Message{
		Key:   messageKey(ev.DeviceID, ev.Name),
		Value: data,
		Time:  ev.Timestamp,
	}, nil
}
